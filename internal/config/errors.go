package config

import (
	"errors"
	"fmt"
)

// ErrorKind classifies configuration failures.
type ErrorKind int

const (
	NotFound ErrorKind = iota + 1
	InvalidTOML
	InvalidUTF8
	InvalidValue
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "config not found"
	case InvalidTOML:
		return "invalid toml"
	case InvalidUTF8:
		return "config is not valid utf-8"
	case InvalidValue:
		return "invalid config value"
	default:
		return "config error"
	}
}

// Error is returned by the loader and by rule overrides.
type Error struct {
	Kind   ErrorKind
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
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

func invalid(format string, args ...any) *Error {
	return &Error{Kind: InvalidValue, Detail: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a config Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
