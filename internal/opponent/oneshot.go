package opponent

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

// OneShot runs the engine once per request, the way a stateless "tune" mode engine is driven:
// the sequence is passed both as an argument ({moves}) and on stdin, the whole stdout is the reply.
type OneShot struct {
	path   string
	opts   Options
	closed atomic.Bool
}

func NewOneShot(opts Options) (*OneShot, error) {
	var path, err = lookPath(opts.Path)
	if err != nil {
		return nil, err
	}
	return &OneShot{path: path, opts: opts}, nil
}

func (o *OneShot) RequestMove(ctx context.Context, moveSequence string) (string, error) {
	if o.closed.Load() {
		return "", &domain.ProtocolError{Path: o.path, Sequence: moveSequence, Err: errClosed}
	}
	var runCtx = ctx
	if o.opts.MoveTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.opts.MoveTimeout)
		defer cancel()
	}

	var cmd = exec.CommandContext(runCtx, o.path, expandArgs(o.opts.Args, moveSequence)...)
	cmd.Dir = o.opts.Dir
	if len(o.opts.Env) != 0 {
		cmd.Env = append(os.Environ(), o.opts.Env...)
	}
	cmd.Stdin = strings.NewReader(moveSequence)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var err = cmd.Run()
	if stderr.Len() != 0 {
		log.Debug().Str("engine", o.path).Str("stderr", stderr.String()).Send()
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if runCtx.Err() != nil {
			return "", &domain.TimeoutError{Path: o.path, Timeout: o.opts.MoveTimeout}
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", &domain.SpawnError{Path: o.path, Err: err}
		}
		return "", &domain.ProtocolError{Path: o.path, Sequence: moveSequence, Err: err}
	}
	return checkResponse(o.path, moveSequence, stdout.String())
}

func (o *OneShot) Close() error {
	o.closed.Store(true)
	return nil
}
