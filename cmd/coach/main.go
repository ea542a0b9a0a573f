package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ChizhovVadim/CounterCoach/internal/config"
)

const defaultConfigPath = "coach.info"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	var err = run(os.Args)
	if err != nil {
		log.Error().Err(err).Msg("coach failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	var cli = NewCommandArgs(args)
	var configPath = cli.GetString("config", defaultConfigPath)
	var cfg, err = loadConfig(cli, configPath)
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "loglevel")
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Interface("config", cfg).Msg("config loaded")

	var handler = NewCommandHandler()
	handler.Add("tune", func() error {
		return withSignals(func(ctx context.Context) error {
			return runTune(ctx, cfg, configPath)
		})
	})
	handler.Add("match", func() error {
		return withSignals(func(ctx context.Context) error {
			var candidate = cli.GetString("candidate", "")
			var baseline = cli.GetString("baseline", "")
			if candidate == "" || baseline == "" {
				return errors.New("match needs -candidate and -baseline binaries")
			}
			return runMatch(ctx, cfg, candidate, baseline)
		})
	})
	handler.Add("book", func() error {
		return runBook(cli.GetString("file", cfg.Book))
	})
	handler.Add("template", func() error {
		return runTemplate(cli.GetString("file", cfg.WeightsSrc), cli.GetString("out", ""))
	})
	handler.Add("clear-games", func() error {
		return runClearGames(cfg.GamesDir)
	})
	handler.Add("history", func() error {
		return runHistory(os.Stdout, cfg.History, cli.GetString("run", ""), cli.GetInt("last", 0))
	})
	handler.Add("show-game", func() error {
		return runShowGame(os.Stdout, cli.GetString("file", ""))
	})
	handler.Add("config", func() error {
		return runConfig(os.Stdout, cfg, cli.GetString("out", ""))
	})
	return handler.Execute(cli.CommandName())
}

// loadConfig reads the coach info file, falling back to defaults when the default
// file is absent, and applies "-KEY value" overrides.
func loadConfig(cli *CommandArgs, path string) (config.Config, error) {
	var cfg, err = config.Load(path)
	if err != nil {
		if !os.IsNotExist(err) || cli.Has("config") {
			return cfg, errors.Wrap(err, "load config")
		}
		cfg = config.Default()
	}
	for k, v := range cli.params {
		if !config.Known(k) {
			continue
		}
		if err := cfg.Set(k, v); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// withSignals runs f until it returns or the process is interrupted.
func withSignals(f func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return f(ctx)
	})

	g.Go(func() error {
		var signals = make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signals)
		select {
		case s := <-signals:
			log.Warn().Str("signal", s.String()).Msg("interrupted")
			return errors.Errorf("interrupted by %v", s)
		case <-ctx.Done():
			return nil
		}
	})

	return g.Wait()
}
