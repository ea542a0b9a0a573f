package search

import (
	"context"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

type Candidate struct {
	Epoch     int
	Round     int
	Index     int
	Magnitude int
	Offsets   domain.WeightVector
}

type Evaluation struct {
	Tally   domain.MatchTally
	Delta   domain.SkillDelta
	Version domain.WeightVersion
}

// IEvaluator scores a candidate offset vector against the epoch baseline.
// A negative delta means the candidate won more games than the baseline.
type IEvaluator interface {
	Evaluate(ctx context.Context, candidate Candidate) (Evaluation, error)
}

// IEpochHook is implemented by evaluators that prepare a baseline before an epoch
// and commit the accepted offsets after it.
type IEpochHook interface {
	BeginEpoch(ctx context.Context, epoch int) error
	EndEpoch(ctx context.Context, result EpochResult) error
}

type IListener interface {
	OnProbe(result ProbeResult)
	OnEpoch(result EpochResult)
}

type Status int

const (
	// Converged: a nonzero delta ended the ramp.
	Converged Status = iota
	// Exhausted: the magnitude reached the limit with every suite drawn level.
	Exhausted
	// Skipped: the evaluation failed (build, spawn, protocol) and nothing was learned.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

type ProbeResult struct {
	Epoch     int
	Round     int
	Index     int
	Status    Status
	Accepted  bool
	Magnitude int
	Attempts  int
	Evaluation
	Err error
}

type EpochResult struct {
	Epoch     int
	Offsets   domain.WeightVector
	Probes    int
	Converged int
	Accepted  int
	Exhausted int
	Skipped   int
}

type Settings struct {
	Size  int
	Dx    int
	Limit int
}

func DefaultSettings() Settings {
	return Settings{
		Size:  domain.VectorSize,
		Dx:    10,
		Limit: 60,
	}
}
