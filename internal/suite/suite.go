package suite

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/match"
	"github.com/ChizhovVadim/CounterCoach/internal/opponent"
)

var ErrEmptyBook = errors.New("opening book is empty")

type ILauncher interface {
	Launch(ctx context.Context) (opponent.Opponent, error)
}

type ITranscriptSink interface {
	Save(game Game) error
}

type gameInfo struct {
	opening          domain.Opening
	candidateIsWhite bool
	gameNumber       int
}

type Game struct {
	SuiteID          string
	Number           int
	CandidateIsWhite bool
	match.Result
}

type Report struct {
	SuiteID string
	Tally   domain.MatchTally
	Delta   domain.SkillDelta
	Stats   GameStatistics
}

// Runner plays every opening of a book twice, colours swapped, between a candidate
// and a baseline engine. Games run one at a time in book order, each with fresh processes.
type Runner struct {
	Candidate ILauncher
	Baseline  ILauncher
	Match     match.Runner
	Sink      ITranscriptSink
}

func (r *Runner) Run(ctx context.Context, book []domain.Opening) (Report, error) {
	if len(book) == 0 {
		return Report{}, ErrEmptyBook
	}
	var suiteID = uuid.NewString()
	log.Info().Str("suite", suiteID).Int("openings", len(book)).Msg("suite started")

	g, ctx := errgroup.WithContext(ctx)

	var gameInfos = make(chan gameInfo)
	var gameResults = make(chan Game)

	g.Go(func() error {
		defer close(gameInfos)
		return loadOpenings(ctx, book, gameInfos)
	})

	g.Go(func() error {
		defer close(gameResults)
		return r.playGames(ctx, suiteID, gameInfos, gameResults)
	})

	var tally domain.MatchTally
	g.Go(func() error {
		var err error
		tally, err = r.showResults(ctx, gameResults)
		return err
	})

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	var delta, err = domain.SkillDeltaOf(tally)
	if err != nil {
		return Report{}, err
	}
	var report = Report{
		SuiteID: suiteID,
		Tally:   tally,
		Delta:   delta,
		Stats:   computeStat(tally.CandidateWins, tally.BaselineWins, tally.Draws),
	}
	log.Info().
		Str("suite", suiteID).
		Int("candidate", tally.CandidateWins).
		Int("baseline", tally.BaselineWins).
		Int("draws", tally.Draws).
		Int("delta", int(delta)).
		Msg("suite finished")
	return report, nil
}

func loadOpenings(
	ctx context.Context,
	book []domain.Opening,
	gameInfos chan<- gameInfo,
) error {
	for i, opening := range book {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case gameInfos <- gameInfo{opening: opening, candidateIsWhite: true, gameNumber: 1 + 2*i}:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case gameInfos <- gameInfo{opening: opening, candidateIsWhite: false, gameNumber: 1 + 2*i + 1}:
		}
	}
	return nil
}

func (r *Runner) playGames(
	ctx context.Context,
	suiteID string,
	gameInfos <-chan gameInfo,
	gameResults chan<- Game,
) error {
	for info := range gameInfos {
		var res, err = r.playGame(ctx, info)
		if err != nil {
			return errors.Wrapf(err, "game %v (%v)", info.gameNumber, info.opening.Name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case gameResults <- Game{
			SuiteID:          suiteID,
			Number:           info.gameNumber,
			CandidateIsWhite: info.candidateIsWhite,
			Result:           res,
		}:
		}
	}
	return nil
}

func (r *Runner) playGame(ctx context.Context, info gameInfo) (match.Result, error) {
	log.Debug().Int("game", info.gameNumber).Str("opening", info.opening.Name).Msg("game started")

	candidate, err := r.Candidate.Launch(ctx)
	if err != nil {
		return match.Result{}, err
	}
	defer candidate.Close()

	baseline, err := r.Baseline.Launch(ctx)
	if err != nil {
		return match.Result{}, err
	}
	defer baseline.Close()

	if info.candidateIsWhite {
		return r.Match.Play(ctx, candidate, baseline, info.opening)
	}
	return r.Match.Play(ctx, baseline, candidate, info.opening)
}

func (r *Runner) showResults(
	ctx context.Context,
	gameResults <-chan Game,
) (domain.MatchTally, error) {
	var tally domain.MatchTally
	for game := range gameResults {
		tally.Add(game.Outcome, game.CandidateIsWhite)
		log.Info().
			Int("game", game.Number).
			Str("opening", game.Opening.Name).
			Str("result", game.Outcome.String()).
			Str("candidate", colourOf(game.CandidateIsWhite)).
			Int("plies", len(game.Plies)).
			Msg("game finished")

		if r.Sink != nil {
			if err := r.Sink.Save(game); err != nil {
				log.Warn().Err(err).Int("game", game.Number).Msg("transcript not saved")
			}
		}

		var stat = computeStat(tally.CandidateWins, tally.BaselineWins, tally.Draws)
		log.Debug().
			Str("score", scoreString(tally)).
			Float64("fraction", stat.WinningFraction).
			Float64("elo", stat.EloDifference).
			Float64("los", stat.LOS*100).
			Send()
	}
	return tally, ctx.Err()
}

func colourOf(candidateIsWhite bool) string {
	if candidateIsWhite {
		return domain.White.String()
	}
	return domain.Black.String()
}
