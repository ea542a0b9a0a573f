package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/book"
	"github.com/ChizhovVadim/CounterCoach/internal/builder"
	"github.com/ChizhovVadim/CounterCoach/internal/config"
	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/history"
	"github.com/ChizhovVadim/CounterCoach/internal/match"
	"github.com/ChizhovVadim/CounterCoach/internal/opponent"
	"github.com/ChizhovVadim/CounterCoach/internal/search"
	"github.com/ChizhovVadim/CounterCoach/internal/suite"
	"github.com/ChizhovVadim/CounterCoach/internal/transcript"
	"github.com/ChizhovVadim/CounterCoach/internal/tuner"
	"github.com/ChizhovVadim/CounterCoach/internal/weights"
	"github.com/ChizhovVadim/CounterCoach/internal/weightstore"
)

func newLauncher(cfg config.Config, binary string) opponent.Launcher {
	return opponent.Launcher{
		Mode: cfg.Mode,
		Options: opponent.Options{
			Path:        binary,
			Args:        cfg.EngineArgs,
			Dir:         cfg.EngineDir,
			MoveTimeout: cfg.MoveTimeout,
		},
	}
}

func loadBook(path string) ([]domain.Opening, error) {
	openings, err := book.Load(path)
	if err != nil {
		return nil, err
	}
	if len(openings) == 0 {
		return nil, errors.Wrap(suite.ErrEmptyBook, path)
	}
	return openings, nil
}

func runTune(ctx context.Context, cfg config.Config, configPath string) error {
	openings, err := loadBook(cfg.Book)
	if err != nil {
		return err
	}

	ledger, err := history.Open(cfg.History)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var ext = filepath.Ext(cfg.WeightsSrc)
	if ext == "" {
		ext = ".txt"
	}
	var evaluator = &tuner.Evaluator{
		RunID:      uuid.NewString(),
		Store:      weightstore.New(cfg.WeightsDir, ext[1:]),
		ActivePath: cfg.WeightsSrc,
		Builder: &builder.Builder{
			Dir:     cfg.EngineDir,
			Command: cfg.BuildCommand,
			Timeout: cfg.BuildTimeout,
		},
		WorkDir: cfg.WorkDir,
		Launcher: func(binary string) suite.ILauncher {
			return newLauncher(cfg, binary)
		},
		Match:  match.Runner{MaxPlies: cfg.MaxPlies},
		Book:   openings,
		Sink:   &transcript.Writer{Dir: cfg.GamesDir, Compress: cfg.Compress, PGN: cfg.PGN},
		Ledger: ledger,
	}

	var report = newReport(os.Stdout, evaluator.Describe)
	report.onEpoch = func(result search.EpochResult) {
		if err := config.SetEpoch(configPath, result.Epoch+1); err != nil {
			log.Warn().Err(err).Msg("epoch not saved")
		}
	}

	_, err = tuner.Run(ctx, evaluator, report, cfg.Epoch, cfg.Epochs, cfg.Dx, cfg.Limit)
	return err
}

func runMatch(ctx context.Context, cfg config.Config, candidate, baseline string) error {
	openings, err := loadBook(cfg.Book)
	if err != nil {
		return err
	}
	var runner = &suite.Runner{
		Candidate: newLauncher(cfg, candidate),
		Baseline:  newLauncher(cfg, baseline),
		Match:     match.Runner{MaxPlies: cfg.MaxPlies},
		Sink:      &transcript.Writer{Dir: cfg.GamesDir, Compress: cfg.Compress, PGN: cfg.PGN},
	}
	res, err := runner.Run(ctx, openings)
	if err != nil {
		return err
	}
	newReport(os.Stdout, nil).Suite(res)
	return nil
}

func runBook(path string) error {
	var n, err = book.Rewrite(path)
	if err != nil {
		return err
	}
	fmt.Printf("%v openings written to %v\n", n, path)
	return nil
}

func runTemplate(path, out string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tmpl, err := weights.Parse(string(content))
	if err != nil {
		return errors.Wrap(err, path)
	}
	log.Info().Str("file", path).Int("weights", tmpl.Len()).Msg("template parsed")
	if out == "" {
		fmt.Print(tmpl.Text())
		return nil
	}
	return os.WriteFile(out, []byte(tmpl.Text()), 0644)
}

func runClearGames(dir string) error {
	var n, err = transcript.Clear(dir)
	if err != nil {
		return err
	}
	fmt.Printf("%v transcripts removed from %v\n", n, dir)
	return nil
}

// runHistory prints the recorded evaluations, only the newest last of them when last > 0.
func runHistory(w io.Writer, path, runID string, last int) error {
	ledger, err := history.Open(path)
	if err != nil {
		return err
	}
	defer ledger.Close()
	entries, err := ledger.Entries(context.Background(), runID)
	if err != nil {
		return err
	}
	if last > 0 && len(entries) > last {
		entries = entries[len(entries)-last:]
	}
	newReport(w, nil).History(entries)
	return nil
}

func runShowGame(w io.Writer, path string) error {
	if path == "" {
		return errors.New("show-game needs -file")
	}
	content, err := transcript.Read(path)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, content)
	return err
}

// runConfig prints the effective configuration, overrides included, or saves it to out.
func runConfig(w io.Writer, cfg config.Config, out string) error {
	if out == "" {
		_, err := io.WriteString(w, cfg.String())
		return err
	}
	if err := cfg.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(w, "config written to %v\n", out)
	return nil
}
