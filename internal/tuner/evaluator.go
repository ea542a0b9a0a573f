package tuner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/history"
	"github.com/ChizhovVadim/CounterCoach/internal/match"
	"github.com/ChizhovVadim/CounterCoach/internal/search"
	"github.com/ChizhovVadim/CounterCoach/internal/suite"
	"github.com/ChizhovVadim/CounterCoach/internal/weights"
)

// Evaluator turns an offset vector into a weight file, builds it into an engine and plays
// the book against the engine built from the epoch's base version.
type Evaluator struct {
	RunID      string
	Store      IWeightStore
	ActivePath string
	Builder    IBuilder
	WorkDir    string
	Launcher   LauncherFactory
	Match      match.Runner
	Book       []domain.Opening
	Sink       suite.ITranscriptSink
	Ledger     ILedger

	template       *weights.Template
	base           domain.WeightVersion
	baselineBinary string
}

// Prepare seeds the store from the active weight file when it is empty and returns
// the number of tunable weights.
func (e *Evaluator) Prepare() (int, error) {
	if err := e.Store.Init(e.ActivePath); err != nil {
		return 0, err
	}
	var _, tmpl, err = e.loadBase()
	if err != nil {
		return 0, err
	}
	return tmpl.Len(), nil
}

// loadBase reads the last committed version. Newer versions may exist: they are
// candidates of an epoch that never finished.
func (e *Evaluator) loadBase() (domain.WeightVersion, *weights.Template, error) {
	base, err := e.Store.Committed()
	if err != nil {
		return 0, nil, err
	}
	content, err := e.Store.Read(base)
	if err != nil {
		return 0, nil, err
	}
	tmpl, err := weights.Parse(content)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "weights version %v", base)
	}
	return base, tmpl, nil
}

func (e *Evaluator) BeginEpoch(ctx context.Context, epoch int) error {
	var base, tmpl, err = e.loadBase()
	if err != nil {
		return err
	}
	if e.template != nil && tmpl.Len() != e.template.Len() {
		return errors.Errorf("weights version %v has %v slots, expected %v", base, tmpl.Len(), e.template.Len())
	}
	if err := e.Store.Materialize(base, e.ActivePath); err != nil {
		return err
	}
	var binary = filepath.Join(e.WorkDir, fmt.Sprintf("baseline-%v", epoch))
	if err := e.Builder.Build(ctx, binary); err != nil {
		return errors.Wrapf(err, "build baseline from version %v", base)
	}
	e.template = tmpl
	e.base = base
	e.baselineBinary = binary
	log.Info().
		Int("epoch", epoch).
		Int("base", int(base)).
		Str("binary", binary).
		Msg("baseline ready")
	return nil
}

func (e *Evaluator) Evaluate(ctx context.Context, c search.Candidate) (search.Evaluation, error) {
	if e.template == nil {
		return search.Evaluation{}, errors.New("evaluate called before BeginEpoch")
	}
	var entry = history.Entry{
		RunID:     e.RunID,
		Epoch:     c.Epoch,
		Round:     c.Round,
		Index:     c.Index,
		Magnitude: c.Magnitude,
	}
	var eval, err = e.evaluate(ctx, c)
	entry.Version = eval.Version
	entry.Tally = eval.Tally
	entry.Delta = eval.Delta
	switch {
	case err != nil:
		entry.Status = "failed"
		entry.Err = err.Error()
	case eval.Delta < 0:
		entry.Status = "better"
	case eval.Delta > 0:
		entry.Status = "worse"
	default:
		entry.Status = "level"
	}
	e.record(ctx, entry)
	// between evaluations the engine sources hold the committed base, never a candidate
	if restoreErr := e.Store.Materialize(e.base, e.ActivePath); restoreErr != nil {
		log.Error().Err(restoreErr).Int("base", int(e.base)).Msg("base weights not restored")
	}
	return eval, err
}

func (e *Evaluator) evaluate(ctx context.Context, c search.Candidate) (search.Evaluation, error) {
	var result search.Evaluation
	content, err := e.template.Fill(c.Offsets)
	if err != nil {
		return result, err
	}
	result.Version, err = e.Store.Write(content)
	if err != nil {
		return result, err
	}
	if err := e.Store.Materialize(result.Version, e.ActivePath); err != nil {
		return result, err
	}
	var binary = filepath.Join(e.WorkDir, "candidate")
	if err := e.Builder.Build(ctx, binary); err != nil {
		return result, err
	}

	log.Info().
		Int("index", c.Index).
		Str("weight", e.template.Describe(c.Index)).
		Int("magnitude", c.Magnitude).
		Int("version", int(result.Version)).
		Msg("suite started")
	var runner = &suite.Runner{
		Candidate: e.Launcher(binary),
		Baseline:  e.Launcher(e.baselineBinary),
		Match:     e.Match,
		Sink:      e.Sink,
	}
	report, err := runner.Run(ctx, e.Book)
	if err != nil {
		return result, err
	}
	result.Tally = report.Tally
	result.Delta = report.Delta
	return result, nil
}

// Describe names weight i of the current template.
func (e *Evaluator) Describe(i int) string {
	if e.template == nil {
		return fmt.Sprintf("#%v", i)
	}
	return e.template.Describe(i)
}

func (e *Evaluator) record(ctx context.Context, entry history.Entry) {
	if e.Ledger == nil {
		return
	}
	if err := e.Ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn().Err(err).Msg("history not recorded")
	}
}

// EndEpoch commits the accepted offsets as a new version and leaves it as the active weights,
// so the next epoch starts from it. An epoch that accepted nothing keeps its base.
func (e *Evaluator) EndEpoch(ctx context.Context, result search.EpochResult) error {
	var version = e.base
	if !result.Offsets.IsZero() {
		content, err := e.template.Fill(result.Offsets)
		if err != nil {
			return err
		}
		version, err = e.Store.Write(content)
		if err != nil {
			return err
		}
	}
	if err := e.Store.Materialize(version, e.ActivePath); err != nil {
		return err
	}
	if err := e.Store.Commit(version); err != nil {
		return err
	}
	log.Info().
		Int("epoch", result.Epoch).
		Int("base", int(e.base)).
		Int("version", int(version)).
		Int("accepted", result.Accepted).
		Msg("epoch committed")
	return nil
}
