package opponent

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

const MovesPlaceholder = "{moves}"

var (
	errClosed        = errors.New("opponent closed")
	errEmptyResponse = errors.New("empty response")
)

// Opponent is a synchronous move oracle backed by one engine process.
type Opponent interface {
	RequestMove(ctx context.Context, moveSequence string) (string, error)
	Close() error
}

type Options struct {
	Path        string
	Args        []string
	Dir         string
	Env         []string
	MoveTimeout time.Duration
}

type Mode string

const (
	// ModeProcess keeps one process per handle and exchanges one line per request.
	ModeProcess Mode = "process"
	// ModeOneShot runs the binary once per request with the sequence on the command line and stdin.
	ModeOneShot Mode = "oneshot"
)

// Launcher spawns a fresh Opponent for every game.
type Launcher struct {
	Mode    Mode
	Options Options
}

func (l Launcher) Launch(ctx context.Context) (Opponent, error) {
	switch l.Mode {
	case ModeOneShot:
		return NewOneShot(l.Options)
	case ModeProcess, "":
		return Start(ctx, l.Options)
	}
	return nil, errors.Errorf("unknown opponent mode %q", l.Mode)
}

func lookPath(path string) (string, error) {
	var resolved, err = exec.LookPath(path)
	if err != nil {
		return "", &domain.SpawnError{Path: path, Err: err}
	}
	// the engine may run in another directory
	if strings.ContainsRune(resolved, filepath.Separator) {
		if abs, err := filepath.Abs(resolved); err == nil {
			resolved = abs
		}
	}
	return resolved, nil
}

func expandArgs(args []string, moveSequence string) []string {
	var result = make([]string, len(args))
	for i, arg := range args {
		result[i] = strings.ReplaceAll(arg, MovesPlaceholder, moveSequence)
	}
	return result
}

func checkResponse(path, moveSequence, response string) (string, error) {
	if strings.TrimSpace(response) == "" {
		return "", &domain.ProtocolError{Path: path, Sequence: moveSequence, Err: errEmptyResponse}
	}
	return response, nil
}
