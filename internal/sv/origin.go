package sv

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/sv-lint/internal/source"
)

// Segment maps a run of preprocessed output, starting at Out, back to File.
// Exact segments were copied verbatim and map byte for byte from Src; the
// rest (macro expansions, placeholder newlines) map every byte to Src.
type Segment struct {
	Out   int
	File  string
	Src   int
	Exact bool
}

// Origins maps offsets in the preprocessed text back to the files that
// produced them.
type Origins struct {
	root  string
	segs  []Segment
	lines map[string]*source.LineMap
}

// Origin returns the file and byte offset that produced output offset off.
// Offsets before the first segment map to themselves in the root file.
func (o *Origins) Origin(off int) (string, int) {
	if o == nil {
		return "", off
	}
	i := sort.Search(len(o.segs), func(i int) bool { return o.segs[i].Out > off }) - 1
	if i < 0 {
		return o.root, off
	}
	s := o.segs[i]
	if !s.Exact {
		return s.File, s.Src
	}
	return s.File, s.Src + off - s.Out
}

// ToLines converts a span of preprocessed text into a location in the file
// it came from. File is set only when that is an included file.
func (o *Origins) ToLines(sp source.Span) source.Location {
	file, start := o.Origin(sp.Start)
	end := start
	if sp.End > sp.Start {
		endFile, last := o.Origin(sp.End - 1)
		if endFile == file && last >= start {
			end = last + 1
		}
	}
	lm := o.lines[file]
	if lm == nil {
		lm = o.lines[o.root]
	}
	loc := lm.ToLines(source.Span{Start: start, End: end})
	if file != o.root {
		loc.File = file
	}
	return loc
}

// emitter builds the preprocessed text and its origin segments together.
type emitter struct {
	b    strings.Builder
	segs []Segment
}

// origin is where the text being scanned came from. Text produced by a
// macro expansion has no offsets of its own: fixed is set and everything
// maps to the use site at.
type origin struct {
	file  string
	fixed bool
	at    int
}

// verbatim appends s, taken verbatim from offset off of the scanned text.
func (e *emitter) verbatim(o origin, off int, s string) {
	if s == "" {
		return
	}
	if o.fixed {
		e.mark(o.file, o.at, false)
	} else {
		e.mark(o.file, off, true)
	}
	e.b.WriteString(s)
}

// synth appends s, produced at offset off of the scanned text.
func (e *emitter) synth(o origin, off int, s string) {
	if s == "" {
		return
	}
	if o.fixed {
		off = o.at
	}
	e.mark(o.file, off, false)
	e.b.WriteString(s)
}

func (e *emitter) newlines(o origin, off, n int) {
	if n > 0 {
		e.synth(o, off, strings.Repeat("\n", n))
	}
}

func (e *emitter) mark(file string, src int, exact bool) {
	out := e.b.Len()
	if n := len(e.segs); n > 0 {
		last := e.segs[n-1]
		if last.File == file && last.Exact == exact {
			if exact && last.Src+out-last.Out == src {
				return
			}
			if !exact && last.Src == src {
				return
			}
		}
		if last.Out == out {
			e.segs = e.segs[:n-1]
		}
	}
	e.segs = append(e.segs, Segment{Out: out, File: file, Src: src, Exact: exact})
}

func (e *emitter) String() string { return e.b.String() }
