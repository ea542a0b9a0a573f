package search

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

// count of the virtual parameter before index 0
const sentinelCount = 1

// Search perturbs one weight at a time, least recently probed first, ramping the offset
// by Dx until the match suite reports a nonzero SkillDelta or the magnitude reaches Limit.
type Search struct {
	Settings
	evaluator IEvaluator
	listener  IListener
	offsets   domain.WeightVector
	counts    []int
}

func New(settings Settings, evaluator IEvaluator, listener IListener) (*Search, error) {
	if settings.Size <= 0 {
		return nil, errors.Errorf("bad vector size %v", settings.Size)
	}
	if settings.Dx == 0 {
		return nil, errors.New("dx must not be zero")
	}
	if settings.Limit <= 0 || abs(settings.Dx) >= settings.Limit {
		return nil, errors.Errorf("limit %v must exceed |dx| %v", settings.Limit, abs(settings.Dx))
	}
	var s = &Search{
		Settings:  settings,
		evaluator: evaluator,
		listener:  listener,
	}
	s.reset()
	return s, nil
}

func (s *Search) reset() {
	s.offsets = domain.NewWeightVector(s.Size)
	s.counts = make([]int, s.Size)
}

func (s *Search) Offsets() domain.WeightVector {
	return s.offsets.Clone()
}

// Next returns the first index whose probe count lags its predecessor's.
func (s *Search) Next() (int, bool) {
	var prev = sentinelCount
	for k, count := range s.counts {
		if count < prev {
			return k, true
		}
		prev = count
	}
	return 0, false
}

// Run executes epochs first..first+count-1. Counters and offsets start from zero every epoch.
func (s *Search) Run(ctx context.Context, first, count int) ([]EpochResult, error) {
	var results []EpochResult
	for epoch := first; epoch < first+count; epoch++ {
		var res, err = s.RunEpoch(ctx, epoch)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Search) RunEpoch(ctx context.Context, epoch int) (EpochResult, error) {
	s.reset()
	var hook, hasHook = s.evaluator.(IEpochHook)
	if hasHook {
		if err := hook.BeginEpoch(ctx, epoch); err != nil {
			return EpochResult{}, errors.Wrapf(err, "begin epoch %v", epoch)
		}
	}
	log.Info().Int("epoch", epoch).Int("parameters", s.Size).Msg("epoch started")

	var result = EpochResult{Epoch: epoch}
	for round := 0; round < s.Size; round++ {
		var index, ok = s.Next()
		if !ok {
			break
		}
		var probe, err = s.Probe(ctx, epoch, round, index)
		if err != nil {
			return result, err
		}
		result.Probes++
		switch probe.Status {
		case Converged:
			result.Converged++
			if probe.Accepted {
				result.Accepted++
			}
		case Exhausted:
			result.Exhausted++
		case Skipped:
			result.Skipped++
		}
		if s.listener != nil {
			s.listener.OnProbe(probe)
		}
	}
	result.Offsets = s.offsets.Clone()

	if hasHook {
		if err := hook.EndEpoch(ctx, result); err != nil {
			return result, errors.Wrapf(err, "end epoch %v", epoch)
		}
	}
	log.Info().
		Int("epoch", epoch).
		Int("probes", result.Probes).
		Int("converged", result.Converged).
		Int("accepted", result.Accepted).
		Int("exhausted", result.Exhausted).
		Int("skipped", result.Skipped).
		Msg("epoch finished")
	if s.listener != nil {
		s.listener.OnEpoch(result)
	}
	return result, nil
}

// Probe ramps the offset of one parameter. It only returns an error when ctx is done;
// failed evaluations are reported as Skipped and leave the offsets unchanged.
func (s *Search) Probe(ctx context.Context, epoch, round, index int) (ProbeResult, error) {
	s.counts[index]++
	var previous = s.offsets[index]
	var result = ProbeResult{
		Epoch:  epoch,
		Round:  round,
		Index:  index,
		Status: Exhausted,
	}

	for magnitude := s.Dx; abs(magnitude) < s.Limit; magnitude += s.Dx {
		result.Magnitude = magnitude
		result.Attempts++
		s.offsets[index] = previous + magnitude

		var eval, err = s.evaluator.Evaluate(ctx, Candidate{
			Epoch:     epoch,
			Round:     round,
			Index:     index,
			Magnitude: magnitude,
			Offsets:   s.offsets.Clone(),
		})
		if err != nil {
			s.offsets[index] = previous
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Status = Skipped
			result.Err = err
			log.Warn().Err(err).Int("index", index).Int("magnitude", magnitude).Msg("probe skipped")
			return result, nil
		}
		result.Evaluation = eval
		log.Debug().
			Int("index", index).
			Int("magnitude", magnitude).
			Int("delta", int(eval.Delta)).
			Int("version", int(eval.Version)).
			Msg("probe evaluated")

		if eval.Delta != 0 {
			result.Status = Converged
			result.Accepted = eval.Delta < 0
			if !result.Accepted {
				s.offsets[index] = previous
			}
			return result, nil
		}
	}

	s.offsets[index] = previous
	return result, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
