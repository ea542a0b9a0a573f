package tuner

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/search"
)

// Run tunes the weights for epochs firstEpoch..firstEpoch+epochs-1.
func Run(
	ctx context.Context,
	evaluator *Evaluator,
	listener search.IListener,
	firstEpoch int,
	epochs int,
	dx int,
	limit int,
) ([]search.EpochResult, error) {

	var size, err = evaluator.Prepare()
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("run", evaluator.RunID).
		Int("weights", size).
		Int("openings", len(evaluator.Book)).
		Int("dx", dx).
		Int("limit", limit).
		Msg("tuning started")

	s, err := search.New(search.Settings{Size: size, Dx: dx, Limit: limit}, evaluator, listener)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, firstEpoch, epochs)
}
