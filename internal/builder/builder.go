package builder

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

const OutputPlaceholder = "{out}"

const maxOutputTail = 2048

var errNoBinary = errors.New("build finished without producing a binary")

// Builder compiles the engine sources into a binary by running a command in the source directory.
// "{out}" in the command is replaced by the output path; arguments with glob patterns are
// expanded against the source directory.
type Builder struct {
	Dir     string
	Command []string
	Timeout time.Duration
}

func (b *Builder) Build(ctx context.Context, output string) error {
	if len(b.Command) == 0 {
		return &domain.SpawnError{Path: output, Err: errors.New("no build command configured")}
	}
	var out, err = filepath.Abs(output)
	if err != nil {
		return &domain.SpawnError{Path: output, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return &domain.SpawnError{Path: output, Err: err}
	}
	_ = os.Remove(out)

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	var args = b.expandArgs(out)
	var cmd = exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = b.Dir
	cmd.Env = os.Environ()
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	var start = time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return &domain.SpawnError{Path: out, Output: tail(buf.String()), Err: err}
	}
	if _, err := os.Stat(out); err != nil {
		return &domain.SpawnError{Path: out, Output: tail(buf.String()), Err: errNoBinary}
	}
	log.Debug().
		Str("binary", out).
		Dur("elapsed", time.Since(start)).
		Msg("engine built")
	return nil
}

func (b *Builder) expandArgs(out string) []string {
	var result []string
	for _, arg := range b.Command {
		arg = strings.ReplaceAll(arg, OutputPlaceholder, out)
		if strings.ContainsAny(arg, "*?[") {
			var matches, err = filepath.Glob(filepath.Join(b.Dir, arg))
			if err == nil && len(matches) != 0 {
				for _, m := range matches {
					if rel, err := filepath.Rel(b.Dir, m); err == nil {
						m = rel
					}
					result = append(result, m)
				}
				continue
			}
		}
		result = append(result, arg)
	}
	return result
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutputTail {
		return "..." + s[len(s)-maxOutputTail:]
	}
	return s
}
