package sv

import (
	"errors"
	"fmt"
)

// ErrorKind classifies front-end failures.
type ErrorKind int

const (
	PreprocessFailed ErrorKind = iota + 1
	ParseFailed
)

func (k ErrorKind) String() string {
	switch k {
	case PreprocessFailed:
		return "preprocess failed"
	case ParseFailed:
		return "parse failed"
	default:
		return "unknown"
	}
}

// ParseError is returned by the preprocessor and the parser. Both kinds are
// recoverable: the caller lints the file without a syntax tree.
type ParseError struct {
	Kind   ErrorKind
	File   string
	Line   int
	Col    int
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Kind.String()
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.File)
		if e.Line > 0 {
			msg = fmt.Sprintf("%s:%d:%d", msg, e.Line, e.Col)
		}
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ParseError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
