package main

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/ChizhovVadim/CounterCoach/internal/history"
	"github.com/ChizhovVadim/CounterCoach/internal/search"
	"github.com/ChizhovVadim/CounterCoach/internal/suite"
)

// report prints probe and epoch summaries for a human watching the terminal.
type report struct {
	out      *termenv.Output
	describe func(i int) string
	onEpoch  func(result search.EpochResult)
}

func newReport(w io.Writer, describe func(i int) string) *report {
	if describe == nil {
		describe = func(i int) string { return fmt.Sprintf("#%v", i) }
	}
	return &report{
		out:      termenv.NewOutput(w),
		describe: describe,
	}
}

func (r *report) colour(s, colour string) termenv.Style {
	return r.out.String(s).Foreground(r.out.Color(colour))
}

func (r *report) OnProbe(p search.ProbeResult) {
	var verdict termenv.Style
	switch {
	case p.Status == search.Skipped:
		verdict = r.colour("skipped", "3")
	case p.Status == search.Exhausted:
		verdict = r.out.String("exhausted").Faint()
	case p.Accepted:
		verdict = r.colour("accepted", "2").Bold()
	default:
		verdict = r.colour("rejected", "1")
	}
	fmt.Fprintf(r.out, "epoch %v round %4v %-14v %+4v x%v delta %+5v %v\n",
		p.Epoch, p.Round, r.describe(p.Index), p.Magnitude, p.Attempts, int(p.Delta), verdict)
	if p.Err != nil {
		fmt.Fprintf(r.out, "    %v\n", r.out.String(p.Err.Error()).Faint())
	}
}

func (r *report) OnEpoch(e search.EpochResult) {
	fmt.Fprintf(r.out, "%v probes %v converged %v accepted %v exhausted %v skipped %v\n",
		r.out.String(fmt.Sprintf("epoch %v finished:", e.Epoch)).Bold(),
		e.Probes, e.Converged, r.colour(fmt.Sprint(e.Accepted), "2"), e.Exhausted, e.Skipped)
	if r.onEpoch != nil {
		r.onEpoch(e)
	}
}

func (r *report) Suite(res suite.Report) {
	var delta = r.out.String(fmt.Sprintf("%+v", int(res.Delta)))
	switch {
	case res.Delta < 0:
		delta = delta.Foreground(r.out.Color("2"))
	case res.Delta > 0:
		delta = delta.Foreground(r.out.Color("1"))
	}
	fmt.Fprintf(r.out, "suite %v: candidate %v baseline %v draws %v\n",
		res.SuiteID, res.Tally.CandidateWins, res.Tally.BaselineWins, res.Tally.Draws)
	fmt.Fprintf(r.out, "delta %v elo %.1f los %.1f%%\n",
		delta, res.Stats.EloDifference, res.Stats.LOS*100)
}

func (r *report) History(entries []history.Entry) {
	for _, e := range entries {
		fmt.Fprintf(r.out, "%v %v epoch %v round %4v idx %4v %+4v v%-5v %v-%v-%v delta %+5v %v %v\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.RunID[:min(8, len(e.RunID))],
			e.Epoch, e.Round, e.Index, e.Magnitude, int(e.Version),
			e.Tally.CandidateWins, e.Tally.BaselineWins, e.Tally.Draws, int(e.Delta),
			e.Status, e.Err)
	}
}
