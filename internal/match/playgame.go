package match

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/opponent"
)

var errTooLong = errors.New("game exceeded ply limit")

type Result struct {
	Opening      domain.Opening
	Plies        []domain.Ply
	Outcome      domain.GameOutcome
	Terminal     string
	TerminatedBy domain.Side
	MoveSequence string
}

type Runner struct {
	// MaxPlies bounds the game length; zero means unlimited.
	MaxPlies int
}

// Play runs one game from the opening. White asks for the first move.
// The game ends on the first terminal token; an engine failure aborts it with an error
// and is never turned into an outcome.
func (r Runner) Play(
	ctx context.Context,
	white, black opponent.Opponent,
	opening domain.Opening,
) (Result, error) {

	var engines = [2]opponent.Opponent{white, black}
	var result = Result{
		Opening:      opening,
		MoveSequence: opening.Moves,
	}
	var side = domain.White

	for ply := 1; ; ply++ {
		if r.MaxPlies != 0 && ply > r.MaxPlies {
			return result, &domain.ProtocolError{
				Sequence: result.MoveSequence,
				Err:      errors.Wrapf(errTooLong, "neither engine ended the game within %v plies", r.MaxPlies),
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		var reply, err = engines[side].RequestMove(ctx, result.MoveSequence)
		if err != nil {
			return result, errors.Wrapf(err, "ply %v (%v)", ply, side)
		}
		var token = strings.TrimSpace(reply)
		result.Plies = append(result.Plies, domain.Ply{Number: ply, Token: token})

		if domain.IsTerminal(token) {
			result.Terminal = token
			result.TerminatedBy = side
			if token == domain.TokenDraw {
				result.Outcome = domain.Draw
			} else {
				result.Outcome = domain.WinFor(side.Opposite())
			}
			log.Debug().
				Str("opening", opening.Name).
				Int("plies", ply).
				Str("result", result.Outcome.String()).
				Msg("game finished")
			return result, nil
		}

		result.MoveSequence += reply
		side = side.Opposite()
	}
}
