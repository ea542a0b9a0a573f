package domain

import (
	"fmt"
	"time"
)

// SpawnError means an engine binary is missing, could not be built or could not start.
type SpawnError struct {
	Path   string
	Output string
	Err    error
}

func (e *SpawnError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("spawn %v: %v: %v", e.Path, e.Err, e.Output)
	}
	return fmt.Sprintf("spawn %v: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ProtocolError means an engine answered with nothing, closed its pipe or misbehaved.
// It is fatal to the match and never counts as a game outcome.
type ProtocolError struct {
	Path     string
	Sequence string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("protocol error after %q: %v", e.Sequence, e.Err)
	}
	return fmt.Sprintf("engine %v: protocol error after %q: %v", e.Path, e.Sequence, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine %v: no move within %v", e.Path, e.Timeout)
}

type BookParseError struct {
	Line int
	Text string
}

func (e *BookParseError) Error() string {
	return fmt.Sprintf("opening book line %v: malformed entry %q", e.Line, e.Text)
}

// PersistenceError wraps transcript, ledger or version write failures.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %v: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
