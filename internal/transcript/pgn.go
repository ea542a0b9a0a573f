package transcript

import (
	"strconv"
	"strings"

	"github.com/notnil/chess"
	"github.com/pkg/errors"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/suite"
)

// toPGN replays the game from the initial chess position. It fails unless every move,
// opening included, is a legal move in UCI coordinate notation.
func toPGN(game suite.Game) (string, error) {
	var g = chess.NewGame(chess.UseNotation(chess.UCINotation{}))
	for _, move := range strings.Fields(game.MoveSequence) {
		if err := g.MoveStr(move); err != nil {
			return "", errors.Wrapf(err, "replay %q", move)
		}
	}

	var white, black = domain.Baseline.String(), domain.Candidate.String()
	if game.CandidateIsWhite {
		white, black = black, white
	}
	g.AddTagPair("Event", "coach "+game.SuiteID)
	g.AddTagPair("Round", strconv.Itoa(game.Number))
	g.AddTagPair("White", white)
	g.AddTagPair("Black", black)
	g.AddTagPair("Opening", game.Opening.Name)

	switch game.Outcome {
	case domain.WhiteWin:
		g.Resign(chess.Black)
	case domain.BlackWin:
		g.Resign(chess.White)
	case domain.Draw:
		if err := g.Draw(chess.DrawOffer); err != nil {
			return "", err
		}
	}
	return g.String(), nil
}
