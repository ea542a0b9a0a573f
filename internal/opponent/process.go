package opponent

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

type lineResult struct {
	text string
	err  error
}

// Process owns one long-running engine process speaking a line protocol:
// the move sequence and a newline in, one response line out.
type Process struct {
	path    string
	timeout time.Duration
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan lineResult
	readers errgroup.Group

	mu       sync.Mutex
	broken   error
	closed   bool
	closeErr error
}

func Start(ctx context.Context, opts Options) (*Process, error) {
	var path, err = lookPath(opts.Path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cmd = exec.Command(path, expandArgs(opts.Args, "")...)
	cmd.Dir = opts.Dir
	if len(opts.Env) != 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &domain.SpawnError{Path: path, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &domain.SpawnError{Path: path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &domain.SpawnError{Path: path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &domain.SpawnError{Path: path, Err: err}
	}

	var p = &Process{
		path:    path,
		timeout: opts.MoveTimeout,
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan lineResult, 1),
	}
	p.readers.Go(func() error {
		defer close(p.lines)
		var scanner = bufio.NewScanner(stdout)
		for scanner.Scan() {
			p.lines <- lineResult{text: scanner.Text()}
		}
		var err = scanner.Err()
		if err == nil {
			err = io.EOF
		}
		p.lines <- lineResult{err: err}
		return nil
	})
	p.readers.Go(func() error {
		var scanner = bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug().Str("engine", path).Str("stderr", scanner.Text()).Send()
		}
		return nil
	})
	log.Debug().Str("engine", path).Int("pid", cmd.Process.Pid).Msg("engine started")
	return p, nil
}

func (p *Process) RequestMove(ctx context.Context, moveSequence string) (string, error) {
	p.mu.Lock()
	var unusable = p.broken
	if p.closed {
		unusable = errClosed
	}
	p.mu.Unlock()
	if unusable != nil {
		return "", &domain.ProtocolError{Path: p.path, Sequence: moveSequence, Err: unusable}
	}

	if _, err := io.WriteString(p.stdin, moveSequence+"\n"); err != nil {
		p.fail(err)
		return "", &domain.ProtocolError{Path: p.path, Sequence: moveSequence, Err: err}
	}

	var timeout <-chan time.Time
	if p.timeout > 0 {
		var timer = time.NewTimer(p.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res, ok := <-p.lines:
		if !ok {
			res.err = io.EOF
		}
		if res.err != nil {
			p.fail(res.err)
			return "", &domain.ProtocolError{Path: p.path, Sequence: moveSequence, Err: res.err}
		}
		return checkResponse(p.path, moveSequence, res.text)
	case <-timeout:
		var err = &domain.TimeoutError{Path: p.path, Timeout: p.timeout}
		p.fail(err)
		p.kill()
		return "", err
	case <-ctx.Done():
		p.fail(ctx.Err())
		p.kill()
		return "", ctx.Err()
	}
}

func (p *Process) fail(err error) {
	p.mu.Lock()
	if p.broken == nil {
		p.broken = err
	}
	p.mu.Unlock()
}

func (p *Process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Close terminates the engine and releases its pipes. Safe to call more than once.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return p.closeErr
	}
	p.closed = true
	_ = p.stdin.Close()
	p.kill()
	// unblock the stdout reader if nobody is waiting for a line
	go func() {
		for range p.lines {
		}
	}()
	_ = p.readers.Wait()
	var err = p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.closeErr = errors.Wrapf(err, "wait %v", p.path)
	}
	log.Debug().Str("engine", p.path).Msg("engine stopped")
	return p.closeErr
}
