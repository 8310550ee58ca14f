package plugin

import (
	"errors"
	"fmt"

	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
)

// Kind classifies plugin failures.
type Kind int

const (
	SpawnFailed Kind = iota + 1
	IOFailed
	Timeout
	BadUTF8
	BadJSON
	ProtocolError
	ExitCode
	StdoutTooLarge
	StderrTooLarge
)

func (k Kind) String() string {
	switch k {
	case SpawnFailed:
		return "plugin spawn failed"
	case IOFailed:
		return "plugin io failed"
	case Timeout:
		return "plugin timeout"
	case BadUTF8:
		return "plugin bad utf-8"
	case BadJSON:
		return "plugin bad json"
	case ProtocolError:
		return "plugin protocol error"
	case ExitCode:
		return "plugin exit nonzero"
	case StdoutTooLarge:
		return "plugin stdout too large"
	case StderrTooLarge:
		return "plugin stderr too large"
	default:
		return "plugin error"
	}
}

// FileLevel reports whether the failure aborts the whole file rather than
// a single stage.
func (k Kind) FileLevel() bool {
	return k == SpawnFailed || k == IOFailed
}

// Error is returned by the dispatcher for every failed invocation.
type Error struct {
	Kind   Kind
	Stage  protocol.Stage
	Detail string
	// Code is the exit status for ExitCode.
	Code int
	// Bytes is how much output was read when a stream cap was hit.
	Bytes int
	// Stderr is the captured stderr snippet, if any.
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (stage %s)", msg, e.Stage)
	}
	if e.Kind == ExitCode {
		msg = fmt.Sprintf("%s: code=%d", msg, e.Code)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a plugin Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// KindOf returns the kind of a plugin error, or 0.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
