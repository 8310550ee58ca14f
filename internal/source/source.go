// Package source holds the text-level primitives shared by every stage:
// input normalization, byte spans and 1-based locations.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when an input file is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("input is not valid UTF-8")

var bom = []byte{0xEF, 0xBB, 0xBF}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Location is a 1-based line/column range. End is never before start.
type Location struct {
	Line    int `json:"line"`
	Col     int `json:"col"`
	EndLine int `json:"end_line"`
	EndCol  int `json:"end_col"`
	// File overrides the linted path, e.g. for a finding inside an include.
	File string `json:"file,omitempty"`
}

// FileStart is the synthetic location used for file-level diagnostics.
var FileStart = Location{Line: 1, Col: 1, EndLine: 1, EndCol: 1}

// Clamped returns the location with every field raised to at least 1.
func (l Location) Clamped() Location {
	return Location{
		Line:    max(l.Line, 1),
		Col:     max(l.Col, 1),
		EndLine: max(l.EndLine, 1),
		EndCol:  max(l.EndCol, 1),
		File:    l.File,
	}
}

// Normalize strips a leading UTF-8 BOM and rewrites CRLF and lone CR line
// endings to LF. Offsets in every later artifact refer to the normalized text.
func Normalize(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, bom)
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	if bytes.IndexByte(raw, '\r') < 0 {
		return string(raw), nil
	}
	out := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	out = bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
	return string(out), nil
}

// ReadFile reads and normalizes a source file.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	text, err := Normalize(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}
