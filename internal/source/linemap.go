package source

import (
	"fmt"
	"sort"

	"fortio.org/safecast"
)

// LineMap converts byte offsets into 1-based line/column pairs.
// It is built once per text and never mutated.
type LineMap struct {
	starts []int
	length int
}

// NewLineMap records the offset of every line start in text.
func NewLineMap(text string) *LineMap {
	starts := make([]int, 1, len(text)/32+2)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineMap{starts: starts, length: len(text)}
}

// Starts returns the line start offsets. starts[0] is always 0.
func (m *LineMap) Starts() []int {
	return m.starts
}

// Len is the length of the mapped text in bytes.
func (m *LineMap) Len() int {
	return m.length
}

// Lines is the number of lines, counting a trailing empty line.
func (m *LineMap) Lines() int {
	return len(m.starts)
}

// StartsU32 returns the line starts in their wire width.
func (m *LineMap) StartsU32() ([]uint32, error) {
	out := make([]uint32, len(m.starts))
	for i, s := range m.starts {
		v, err := safecast.Conv[uint32](s)
		if err != nil {
			return nil, fmt.Errorf("line start %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ToLines maps a span to a location. Offsets past the end of the text are
// clamped to the text length, negative offsets to zero.
func (m *LineMap) ToLines(sp Span) Location {
	start := m.clamp(sp.Start)
	end := m.clamp(sp.End)
	if end < start {
		end = start
	}
	line, col := m.lineCol(start)
	endLine, endCol := m.lineCol(end)
	return Location{Line: line, Col: col, EndLine: endLine, EndCol: endCol}
}

// Point maps a single offset to a zero-width location.
func (m *LineMap) Point(off int) Location {
	return m.ToLines(Span{Start: off, End: off})
}

func (m *LineMap) clamp(off int) int {
	if off < 0 {
		return 0
	}
	if off > m.length {
		return m.length
	}
	return off
}

func (m *LineMap) lineCol(off int) (int, int) {
	// greatest start <= off
	idx := sort.Search(len(m.starts), func(i int) bool { return m.starts[i] > off }) - 1
	if idx < 0 {
		idx = 0
	}
	return idx + 1, off - m.starts[idx] + 1
}
