package search

import (
	"context"
	"errors"
	"testing"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

type fakeEvaluator struct {
	delta      func(c Candidate) (domain.SkillDelta, error)
	candidates []Candidate
	begun      []int
	ended      []EpochResult
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, c Candidate) (Evaluation, error) {
	f.candidates = append(f.candidates, c)
	var d, err = f.delta(c)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Delta: d, Version: domain.WeightVersion(len(f.candidates))}, nil
}

func (f *fakeEvaluator) BeginEpoch(ctx context.Context, epoch int) error {
	f.begun = append(f.begun, epoch)
	return nil
}

func (f *fakeEvaluator) EndEpoch(ctx context.Context, result EpochResult) error {
	f.ended = append(f.ended, result)
	return nil
}

type recordingListener struct {
	probes []ProbeResult
	epochs []EpochResult
}

func (l *recordingListener) OnProbe(r ProbeResult) { l.probes = append(l.probes, r) }
func (l *recordingListener) OnEpoch(r EpochResult) { l.epochs = append(l.epochs, r) }

func constDelta(d domain.SkillDelta) func(Candidate) (domain.SkillDelta, error) {
	return func(Candidate) (domain.SkillDelta, error) { return d, nil }
}

func newSearch(t *testing.T, settings Settings, e IEvaluator, l IListener) *Search {
	var s, err = New(settings, e, l)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNextSelectsLaggingNeighbour(t *testing.T) {
	var tests = []struct {
		counts []int
		index  int
		ok     bool
	}{
		{[]int{0, 0, 0, 0}, 0, true},
		{[]int{1, 0, 0, 0}, 1, true},
		{[]int{1, 1, 1, 0}, 3, true},
		{[]int{2, 1, 1, 1}, 1, true},
		{[]int{1, 1, 1, 1}, 0, false},
		{[]int{1, 2, 2, 1}, 3, true},
	}
	for i, test := range tests {
		var s = newSearch(t, Settings{Size: len(test.counts), Dx: 1, Limit: 2}, &fakeEvaluator{}, nil)
		copy(s.counts, test.counts)
		var index, ok = s.Next()
		if index != test.index || ok != test.ok {
			t.Error(i, test, index, ok)
		}
	}
}

func TestSelectionPassVisitsEveryIndexOnce(t *testing.T) {
	const size = domain.VectorSize
	var s = newSearch(t, Settings{Size: size, Dx: 1, Limit: 2}, &fakeEvaluator{}, nil)
	for round := 0; round < size; round++ {
		var k, ok = s.Next()
		if !ok {
			t.Fatal("nothing selected in round", round)
		}
		if round == 0 && k != 0 {
			t.Fatal("first selection", k)
		}
		var prev = sentinelCount
		if k > 0 {
			prev = s.counts[k-1]
		}
		if s.counts[k] >= prev {
			t.Fatal("selected index does not lag its neighbour", k)
		}
		if k != round {
			t.Fatal("expected round robin order", round, k)
		}
		s.counts[k]++
	}
	if _, ok := s.Next(); ok {
		t.Error("selection after a full pass")
	}
}

func TestRampIsBounded(t *testing.T) {
	var tests = []struct {
		dx, limit, attempts int
	}{
		{10, 60, 5},
		{7, 60, 8},
		{-10, 60, 5},
		{1, 5, 4},
		{30, 60, 1},
		{59, 60, 1},
	}
	for _, test := range tests {
		var e = &fakeEvaluator{delta: constDelta(0)}
		var s = newSearch(t, Settings{Size: 3, Dx: test.dx, Limit: test.limit}, e, nil)
		var res, err = s.Probe(context.Background(), 1, 0, 1)
		if err != nil {
			t.Fatal(err)
		}
		if res.Attempts != test.attempts || res.Attempts > test.limit/abs(test.dx) {
			t.Error(test, res.Attempts)
		}
		if res.Status != Exhausted {
			t.Error(test, res.Status)
		}
		if !s.offsets.IsZero() {
			t.Error("exhausted probe left an offset", s.offsets)
		}
		for i, c := range e.candidates {
			if c.Magnitude != (i+1)*test.dx || c.Offsets[1] != c.Magnitude {
				t.Error(test, i, c.Magnitude, c.Offsets)
			}
		}
	}
}

func TestRampStopsOnNonzeroDelta(t *testing.T) {
	var tests = []struct {
		delta    domain.SkillDelta
		accepted bool
		offset   int
	}{
		{-67, true, 30},
		{133, false, 0},
	}
	for _, test := range tests {
		var delta = test.delta
		var e = &fakeEvaluator{delta: func(c Candidate) (domain.SkillDelta, error) {
			if c.Magnitude == 30 {
				return delta, nil
			}
			return 0, nil
		}}
		var s = newSearch(t, Settings{Size: 4, Dx: 10, Limit: 60}, e, nil)
		var res, err = s.Probe(context.Background(), 1, 0, 2)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != Converged || res.Attempts != 3 || res.Accepted != test.accepted || res.Delta != test.delta {
			t.Error(test, res)
		}
		if s.offsets[2] != test.offset {
			t.Error(test, s.offsets)
		}
		if len(e.candidates) != 3 {
			t.Error("evaluations after convergence", len(e.candidates))
		}
	}
}

func TestFailedEvaluationIsSkipped(t *testing.T) {
	var spawnErr = &domain.SpawnError{Path: "engine", Err: errors.New("compile failed")}
	var e = &fakeEvaluator{delta: func(c Candidate) (domain.SkillDelta, error) {
		if c.Index == 1 {
			return 0, spawnErr
		}
		return -10, nil
	}}
	var l = &recordingListener{}
	var s = newSearch(t, Settings{Size: 3, Dx: 10, Limit: 60}, e, l)
	var res, err = s.RunEpoch(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Probes != 3 || res.Skipped != 1 || res.Accepted != 2 {
		t.Error(res)
	}
	if l.probes[1].Status != Skipped || l.probes[1].Err == nil || l.probes[1].Delta != 0 {
		t.Error(l.probes[1])
	}
	var expected = domain.WeightVector{10, 0, 10}
	for i := range expected {
		if res.Offsets[i] != expected[i] {
			t.Error(res.Offsets)
		}
	}
}

func TestEpochCarriesAcceptedOffsets(t *testing.T) {
	// index 0 improves, index 1 gets worse, index 2 never moves the score
	var e = &fakeEvaluator{delta: func(c Candidate) (domain.SkillDelta, error) {
		switch c.Index {
		case 0:
			return -20, nil
		case 1:
			return 20, nil
		}
		return 0, nil
	}}
	var l = &recordingListener{}
	var s = newSearch(t, Settings{Size: 3, Dx: 20, Limit: 60}, e, l)
	var results, err = s.Run(context.Background(), 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Epoch != 4 || results[1].Epoch != 5 {
		t.Fatal(results)
	}
	if len(e.begun) != 2 || len(e.ended) != 2 || len(l.epochs) != 2 {
		t.Error(e.begun, len(e.ended), len(l.epochs))
	}
	var first = results[0]
	if first.Probes != 3 || first.Converged != 2 || first.Accepted != 1 || first.Exhausted != 1 {
		t.Error(first)
	}
	if first.Offsets[0] != 20 || first.Offsets[1] != 0 || first.Offsets[2] != 0 {
		t.Error(first.Offsets)
	}
	// the candidate for index 1 already carries the accepted offset of index 0
	for _, c := range e.candidates[:4] {
		if c.Index == 1 && c.Offsets[0] != 20 {
			t.Error(c)
		}
	}
	// every epoch starts from zero offsets
	var secondEpochFirst = e.candidates[4]
	if secondEpochFirst.Epoch != 5 || secondEpochFirst.Offsets[0] != 20 || secondEpochFirst.Offsets[1] != 0 {
		t.Error(secondEpochFirst)
	}
}

func TestCancelStopsSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var e = &fakeEvaluator{delta: func(c Candidate) (domain.SkillDelta, error) {
		if c.Index == 1 {
			cancel()
			return 0, context.Canceled
		}
		return 0, nil
	}}
	var s = newSearch(t, Settings{Size: 5, Dx: 10, Limit: 60}, e, nil)
	var _, err = s.RunEpoch(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}
	if !s.offsets.IsZero() {
		t.Error(s.offsets)
	}
}

func TestNewValidates(t *testing.T) {
	var tests = []Settings{
		{Size: 0, Dx: 10, Limit: 60},
		{Size: 10, Dx: 0, Limit: 60},
		{Size: 10, Dx: 10, Limit: 0},
		{Size: 10, Dx: 60, Limit: 60},
		{Size: 10, Dx: -70, Limit: 60},
	}
	for _, settings := range tests {
		if _, err := New(settings, &fakeEvaluator{}, nil); err == nil {
			t.Error(settings)
		}
	}
	if _, err := New(DefaultSettings(), &fakeEvaluator{}, nil); err != nil {
		t.Error(err)
	}
}
