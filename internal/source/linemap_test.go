package source

import (
	"strings"
	"testing"
)

func TestLineMapStarts(t *testing.T) {
	m := NewLineMap("ab\ncd\n\nx")
	want := []int{0, 3, 6, 7}
	got := m.Starts()
	if len(got) != len(want) {
		t.Fatalf("starts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("starts = %v, want %v", got, want)
		}
	}
}

func TestLineMapLineMatchesNewlineCount(t *testing.T) {
	texts := []string{
		"",
		"module m; endmodule",
		"a\nb\nc",
		"\n\n\n",
		"line one\n  line two\nlast line without newline",
		"ünïcode\nbytes\n",
	}
	for _, text := range texts {
		m := NewLineMap(text)
		for o := 0; o <= len(text); o++ {
			loc := m.Point(o)
			wantLine := 1 + strings.Count(text[:o], "\n")
			if loc.Line != wantLine {
				t.Fatalf("text %q offset %d: line %d, want %d", text, o, loc.Line, wantLine)
			}
			lineStart := strings.LastIndexByte(text[:o], '\n') + 1
			if loc.Col != o-lineStart+1 {
				t.Fatalf("text %q offset %d: col %d, want %d", text, o, loc.Col, o-lineStart+1)
			}
		}
	}
}

func TestLineMapRange(t *testing.T) {
	m := NewLineMap("module m;\n  wire a;\nendmodule\n")
	loc := m.ToLines(Span{Start: 12, End: 18})
	want := Location{Line: 2, Col: 3, EndLine: 2, EndCol: 9}
	if loc != want {
		t.Fatalf("ToLines = %+v, want %+v", loc, want)
	}
	loc = m.ToLines(Span{Start: 2, End: 21})
	if loc.Line != 1 || loc.EndLine != 3 {
		t.Fatalf("multi-line span = %+v", loc)
	}
}

func TestLineMapClampsMalformedSpans(t *testing.T) {
	m := NewLineMap("abc\ndef")
	loc := m.ToLines(Span{Start: 100, End: 200})
	want := Location{Line: 2, Col: 4, EndLine: 2, EndCol: 4}
	if loc != want {
		t.Fatalf("clamped = %+v, want %+v", loc, want)
	}
	loc = m.ToLines(Span{Start: -5, End: 2})
	if loc.Line != 1 || loc.Col != 1 || loc.EndCol != 3 {
		t.Fatalf("negative start = %+v", loc)
	}
	loc = m.ToLines(Span{Start: 5, End: 1})
	if loc.EndLine < loc.Line || (loc.EndLine == loc.Line && loc.EndCol < loc.Col) {
		t.Fatalf("end before start: %+v", loc)
	}
}

func TestLineMapStartsU32(t *testing.T) {
	m := NewLineMap("a\nb\n")
	got, err := m.StartsU32()
	if err != nil {
		t.Fatalf("StartsU32: %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 4 {
		t.Fatalf("StartsU32 = %v", got)
	}
}
