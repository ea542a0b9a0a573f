package tuner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/history"
	"github.com/ChizhovVadim/CounterCoach/internal/match"
	"github.com/ChizhovVadim/CounterCoach/internal/opponent"
	"github.com/ChizhovVadim/CounterCoach/internal/search"
	"github.com/ChizhovVadim/CounterCoach/internal/suite"
	"github.com/ChizhovVadim/CounterCoach/internal/weights"
	"github.com/ChizhovVadim/CounterCoach/internal/weightstore"
)

const baselineSource = `// piece values
int w[2] = {0, 0};
`

// copyBuilder "compiles" the active weight file by copying it to the output.
type copyBuilder struct {
	active string
	builds []string
	fail   bool
}

func (b *copyBuilder) Build(ctx context.Context, output string) error {
	b.builds = append(b.builds, filepath.Base(output))
	if b.fail && strings.HasPrefix(filepath.Base(output), "candidate") {
		return &domain.SpawnError{Path: output, Err: errors.New("compile error")}
	}
	content, err := os.ReadFile(b.active)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}
	return os.WriteFile(output, content, 0644)
}

// weightEngine plays according to the weights baked into its "binary":
// w[1] > 0 makes it resign at once, w[0] >= 10 makes it play on until a draw,
// anything else resigns.
type weightEngine struct {
	strong bool
}

func (e *weightEngine) RequestMove(ctx context.Context, moveSequence string) (string, error) {
	if !e.strong {
		return domain.TokenLoss, nil
	}
	if len(strings.Fields(moveSequence)) < 4 {
		return "m ", nil
	}
	return domain.TokenDraw, nil
}

func (e *weightEngine) Close() error { return nil }

type binaryLauncher struct {
	binary string
}

func (l binaryLauncher) Launch(ctx context.Context) (opponent.Opponent, error) {
	content, err := os.ReadFile(l.binary)
	if err != nil {
		return nil, &domain.SpawnError{Path: l.binary, Err: err}
	}
	tmpl, err := weights.Parse(string(content))
	if err != nil {
		return nil, err
	}
	var w = tmpl.Baseline()
	return &weightEngine{strong: w[1] <= 0 && w[0] >= 10}, nil
}

type memoryLedger struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (l *memoryLedger) Record(ctx context.Context, e history.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func newTestEvaluator(t *testing.T) (*Evaluator, *weightstore.Store, *memoryLedger, *copyBuilder) {
	var dir = t.TempDir()
	var active = filepath.Join(dir, "src", "weights.h")
	if err := os.MkdirAll(filepath.Dir(active), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(active, []byte(baselineSource), 0644); err != nil {
		t.Fatal(err)
	}
	var store = weightstore.New(filepath.Join(dir, "weights"), "h")
	var ledger = &memoryLedger{}
	var builder = &copyBuilder{active: active}
	var e = &Evaluator{
		RunID:      "run",
		Store:      store,
		ActivePath: active,
		Builder:    builder,
		WorkDir:    filepath.Join(dir, "build"),
		Launcher:   func(binary string) suite.ILauncher { return binaryLauncher{binary} },
		Match:      match.Runner{MaxPlies: 100},
		Book:       []domain.Opening{{Moves: "e2e4 ", Name: "King's Pawn"}},
		Ledger:     ledger,
	}
	return e, store, ledger, builder
}

func baselineOf(t *testing.T, store *weightstore.Store, v domain.WeightVersion) []int {
	content, err := store.Read(v)
	if err != nil {
		t.Fatal(err)
	}
	tmpl, err := weights.Parse(content)
	if err != nil {
		t.Fatal(err)
	}
	return tmpl.Baseline()
}

func TestRunTwoEpochs(t *testing.T) {
	var e, store, ledger, _ = newTestEvaluator(t)
	var results, err = Run(context.Background(), e, nil, 1, 2, 10, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatal(results)
	}

	// epoch 1: w[0]+10 beats the weak baseline, w[1] never changes the score
	if results[0].Accepted != 1 || results[0].Exhausted != 1 || results[0].Offsets[0] != 10 {
		t.Error(results[0])
	}
	var w = baselineOf(t, store, 4)
	if w[0] != 10 || w[1] != 0 {
		t.Error("epoch 1 commit", w)
	}

	// epoch 2: raising w[0] again only draws, w[1] loses to the new baseline
	if results[1].Accepted != 0 || results[1].Converged != 1 || results[1].Exhausted != 1 {
		t.Error(results[1])
	}
	// nothing accepted: no new version, the epoch 1 commit stays the resume point
	last, err := store.Max()
	if err != nil || last != 7 {
		t.Error(last, err)
	}
	committed, err := store.Committed()
	if err != nil || committed != 4 {
		t.Error(committed, err)
	}

	active, err := os.ReadFile(e.ActivePath)
	if err != nil {
		t.Fatal(err)
	}
	content, _ := store.Read(committed)
	if string(active) != content {
		t.Error("active weights are not the committed version")
	}

	var statuses []string
	for _, entry := range ledger.entries {
		statuses = append(statuses, entry.Status)
	}
	if strings.Join(statuses, " ") != "better level level level level worse" {
		t.Error(statuses)
	}
	if ledger.entries[0].Version != 1 || ledger.entries[0].Delta != -400 || ledger.entries[0].Tally.CandidateWins != 2 {
		t.Error(ledger.entries[0])
	}
	if ledger.entries[5].Epoch != 2 || ledger.entries[5].Index != 1 || ledger.entries[5].Delta != 400 {
		t.Error(ledger.entries[5])
	}
}

func TestBuildFailureSkipsCandidate(t *testing.T) {
	var e, store, ledger, builder = newTestEvaluator(t)
	builder.fail = true
	var results, err = Run(context.Background(), e, nil, 0, 1, 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Skipped != 2 || results[0].Accepted != 0 {
		t.Error(results[0])
	}
	if len(ledger.entries) != 2 || ledger.entries[0].Status != "failed" || ledger.entries[0].Err == "" {
		t.Error(ledger.entries)
	}
	if committed, err := store.Committed(); err != nil || committed != 0 {
		t.Error(committed, err)
	}
	active, err := os.ReadFile(e.ActivePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(active) != baselineSource {
		t.Errorf("active weights left at a failed candidate: %q", active)
	}
}

// cancellingLauncher cancels the run when the n-th engine is launched.
type cancellingLauncher struct {
	binaryLauncher
	launches *int
	n        int
	cancel   context.CancelFunc
}

func (l cancellingLauncher) Launch(ctx context.Context) (opponent.Opponent, error) {
	*l.launches++
	if *l.launches == l.n {
		l.cancel()
		return nil, ctx.Err()
	}
	return l.binaryLauncher.Launch(ctx)
}

func TestResumeAfterInterrupt(t *testing.T) {
	var e, store, _, _ = newTestEvaluator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// four launches per suite: the fifth is the first game of index 1
	var launches = 0
	e.Launcher = func(binary string) suite.ILauncher {
		return cancellingLauncher{binaryLauncher{binary}, &launches, 5, cancel}
	}
	if _, err := Run(ctx, e, nil, 1, 1, 10, 30); !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}
	if last, _ := store.Max(); last != 2 {
		t.Error("candidates written", last)
	}
	if committed, err := store.Committed(); err != nil || committed != 0 {
		t.Error(committed, err)
	}
	active, err := os.ReadFile(e.ActivePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(active) != baselineSource {
		t.Errorf("active weights left at an unscored candidate: %q", active)
	}

	// a new run starts again from the untouched baseline
	var resumed, _, _, _ = newTestEvaluator(t)
	resumed.Store = store
	resumed.ActivePath = e.ActivePath
	resumed.Builder = &copyBuilder{active: e.ActivePath}
	results, err := Run(context.Background(), resumed, nil, 1, 1, 10, 30)
	if err != nil {
		t.Fatal(err)
	}
	if resumed.base != 0 || results[0].Offsets[0] != 10 || results[0].Offsets[1] != 0 {
		t.Error(resumed.base, results[0].Offsets)
	}
	committed, err := store.Committed()
	if err != nil {
		t.Fatal(err)
	}
	var w = baselineOf(t, store, committed)
	if w[0] != 10 || w[1] != 0 {
		t.Error("resumed from an unscored candidate", w)
	}
}

func TestBaselineBuildFailureStopsRun(t *testing.T) {
	var e, _, _, _ = newTestEvaluator(t)
	e.Builder = &failingBuilder{}
	var _, err = Run(context.Background(), e, nil, 0, 1, 10, 20)
	var spawnErr *domain.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Error(err)
	}
}

type failingBuilder struct{}

func (failingBuilder) Build(ctx context.Context, output string) error {
	return &domain.SpawnError{Path: output, Err: errors.New("no compiler")}
}

func TestEvaluateBeforeBeginEpoch(t *testing.T) {
	var e, _, _, _ = newTestEvaluator(t)
	if _, err := e.Evaluate(context.Background(), search.Candidate{}); err == nil {
		t.Error("evaluate without baseline")
	}
}
