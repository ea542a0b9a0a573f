package suite

import (
	"fmt"
	"math"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

// GameStatistics is the candidate's result expressed as a logistic Elo difference.
// Unlike SkillDelta it counts draws as half points and is only reported.
type GameStatistics struct {
	WinningFraction float64
	EloDifference   float64
	LOS             float64
}

//https://chessprogramming.wikispaces.com/Match%20Statistics
func computeStat(wins, losses, draws int) GameStatistics {
	var games = wins + losses + draws
	if games == 0 {
		return GameStatistics{}
	}
	var winningFraction = (float64(wins) + 0.5*float64(draws)) / float64(games)
	var eloDifference = -math.Log(1/winningFraction-1) * 400 / math.Ln10
	var los = 0.5
	if wins+losses != 0 {
		los = 0.5 + 0.5*math.Erf(float64(wins-losses)/math.Sqrt(2*float64(wins+losses)))
	}
	return GameStatistics{
		WinningFraction: winningFraction,
		EloDifference:   eloDifference,
		LOS:             los,
	}
}

func scoreString(t domain.MatchTally) string {
	return fmt.Sprintf("%v - %v - %v", t.CandidateWins, t.BaselineWins, t.Draws)
}
