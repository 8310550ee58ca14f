package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv-lint/internal/source"
	"github.com/robert-at-pretension-io/sv-lint/internal/sv"
	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
)

func collect(t *testing.T, text string) *Result {
	t.Helper()
	root, err := sv.ParseText("t.sv", text, sv.ParseOptions{})
	require.NoError(t, err)
	res, err := Collect(text, root)
	require.NoError(t, err)
	return res
}

func symbol(t *testing.T, syms []SymbolUsage, name string) SymbolUsage {
	t.Helper()
	for _, s := range syms {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not in %+v", name, syms)
	return SymbolUsage{}
}

func TestUnusedInputPort(t *testing.T) {
	res := collect(t, "module top(input logic a); endmodule")

	require.Len(t, res.Ports, 1)
	assert.Equal(t, PortInfo{Module: "top", Name: "a", Direction: "input",
		Loc: source.Location{Line: 1, Col: 24, EndLine: 1, EndCol: 25}}, res.Ports[0])

	syms := res.Symbols()
	require.Len(t, syms, 1)
	a := syms[0]
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, DeclPort, a.Kind)
	assert.Equal(t, Unused, a.Class)
	assert.False(t, a.Used)
	assert.Zero(t, a.RefCount)
}

const regSource = `module m(input logic clk, input logic d, output logic q);
  logic r;
  wire unused_w;
  parameter P = 4;
  assign q = r;
  always_ff @(posedge clk) r <= d;
endmodule
`

func TestClassification(t *testing.T) {
	res := collect(t, regSource)
	syms := res.Symbols()

	want := map[string]Class{
		"clk":      ReadOnly,
		"d":        ReadOnly,
		"q":        WriteOnly,
		"r":        ReadWrite,
		"unused_w": Unused,
		"P":        Unused,
	}
	require.Len(t, syms, len(want))
	for name, class := range want {
		s := symbol(t, syms, name)
		assert.Equal(t, class, s.Class, name)
		assert.Equal(t, "m", s.Module, name)
		assert.Equal(t, s.RefCount, s.ReadCount+s.WriteCount, name)
	}

	var order []string
	for _, s := range syms {
		order = append(order, s.Name)
	}
	assert.Equal(t, []string{"clk", "d", "q", "r", "unused_w", "P"}, order)

	r := symbol(t, syms, "r")
	assert.Equal(t, DeclVar, r.Kind)
	assert.Equal(t, 1, r.ReadCount)
	assert.Equal(t, 1, r.WriteCount)
	assert.Equal(t, source.Location{Line: 2, Col: 9, EndLine: 2, EndCol: 10}, r.Loc)
	assert.Equal(t, DeclNet, symbol(t, syms, "unused_w").Kind)
	assert.Equal(t, DeclParam, symbol(t, syms, "P").Kind)
}

func TestAssignments(t *testing.T) {
	res := collect(t, regSource)
	require.Len(t, res.Assignments, 2)

	cont := res.Assignments[0]
	assert.Equal(t, BlockingOrCont, cont.Op)
	assert.Equal(t, "q", cont.LHS)
	assert.Equal(t, "r", cont.RHS)
	assert.Equal(t, source.Location{Line: 5, Col: 14, EndLine: 5, EndCol: 15}, cont.Loc)

	nb := res.Assignments[1]
	assert.Equal(t, Nonblocking, nb.Op)
	assert.Equal(t, "r", nb.LHS)
	assert.Equal(t, "d", nb.RHS)
	assert.Equal(t, "m", nb.Module)
}

func TestModuleDeclarationAndScope(t *testing.T) {
	res := collect(t, regSource)
	require.NotEmpty(t, res.Declarations)
	assert.Equal(t, Declaration{Kind: DeclModule, Name: "m",
		Loc: source.Location{Line: 1, Col: 8, EndLine: 1, EndCol: 9}}, res.Declarations[0])
	require.Len(t, res.Scopes, 1)
	assert.Equal(t, "m", res.Scopes[0].Name)
	assert.Equal(t, "module", res.Scopes[0].Kind)
}

func TestNonAnsiPorts(t *testing.T) {
	res := collect(t, `module n(a, y);
  input a;
  output y;
  assign y = ~a;
endmodule
`)
	require.Len(t, res.Ports, 2)
	assert.Equal(t, "input", res.Ports[0].Direction)
	assert.Equal(t, "output", res.Ports[1].Direction)

	syms := res.Symbols()
	assert.Equal(t, ReadOnly, symbol(t, syms, "a").Class)
	assert.Equal(t, WriteOnly, symbol(t, syms, "y").Class)
}

func TestAnsiDirectionIsInherited(t *testing.T) {
	res := collect(t, "module m(output logic a, b, input c); endmodule")
	require.Len(t, res.Ports, 3)
	assert.Equal(t, "output", res.Ports[0].Direction)
	assert.Equal(t, "output", res.Ports[1].Direction)
	assert.Equal(t, "input", res.Ports[2].Direction)
}

func TestInitializerIsWriteAndReads(t *testing.T) {
	res := collect(t, `module m;
  logic a;
  logic b = a;
endmodule
`)
	syms := res.Symbols()
	assert.Equal(t, ReadOnly, symbol(t, syms, "a").Class)
	assert.Equal(t, WriteOnly, symbol(t, syms, "b").Class)

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "b", res.Assignments[0].LHS)
	assert.Equal(t, "a", res.Assignments[0].RHS)
}

func TestSelectsAndMembers(t *testing.T) {
	res := collect(t, `module m;
  logic [3:0] v;
  logic i;
  typedef struct packed { logic f; } s_t;
  s_t s;
  always_comb begin
    v[i] = s.f;
  end
endmodule
`)
	var reads, writes []string
	for _, r := range res.References {
		if r.Kind == Read {
			reads = append(reads, r.Name)
		} else {
			writes = append(writes, r.Name)
		}
	}
	assert.Equal(t, []string{"v"}, writes)
	assert.ElementsMatch(t, []string{"i", "s"}, reads)

	syms := res.Symbols()
	assert.Equal(t, WriteOnly, symbol(t, syms, "v").Class)
	assert.Equal(t, ReadOnly, symbol(t, syms, "s").Class)
	for _, d := range res.Declarations {
		if d.Name == "s_t" {
			assert.Equal(t, DeclTypedef, d.Kind)
		}
	}
}

func TestConcatenatedLvalue(t *testing.T) {
	res := collect(t, `module m(input logic clk, input logic [1:0] d);
  logic a, b;
  always_ff @(posedge clk) {a, b} <= d;
endmodule
`)
	syms := res.Symbols()
	assert.Equal(t, WriteOnly, symbol(t, syms, "a").Class)
	assert.Equal(t, WriteOnly, symbol(t, syms, "b").Class)

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, Nonblocking, res.Assignments[0].Op)
	assert.Equal(t, "{a, b}", res.Assignments[0].LHS)
	assert.Equal(t, "d", res.Assignments[0].RHS)
}

func TestImplicitPortConnectionIsRead(t *testing.T) {
	res := collect(t, `module m(input logic clk, input logic x);
  sub u (.clk, .d(x));
endmodule
`)
	syms := res.Symbols()
	assert.Equal(t, ReadOnly, symbol(t, syms, "clk").Class)
	assert.Equal(t, ReadOnly, symbol(t, syms, "x").Class)
	for _, r := range res.References {
		assert.NotEqual(t, "u", r.Name)
		assert.NotEqual(t, "sub", r.Name)
		assert.NotEqual(t, "d", r.Name)
	}
}

func TestScopesAreModuleLocal(t *testing.T) {
	res := collect(t, `module a;
  logic x;
  assign x = 1'b0;
endmodule
module b;
  logic x;
endmodule
`)
	syms := res.Symbols()
	require.Len(t, syms, 2)
	assert.Equal(t, "a", syms[0].Module)
	assert.Equal(t, WriteOnly, syms[0].Class)
	assert.Equal(t, "b", syms[1].Module)
	assert.Equal(t, Unused, syms[1].Class)
}

func TestAnalyzeDeduplicates(t *testing.T) {
	decls := []Declaration{
		{Kind: DeclModule, Name: "m"},
		{Kind: DeclNet, Name: "w", Module: "m"},
		{Kind: DeclNet, Name: "w", Module: "m"},
		{Kind: DeclTypedef, Name: "t", Module: "m"},
	}
	refs := []Reference{
		{Name: "w", Module: "m", Kind: Read},
		{Name: "w", Module: "m", Kind: Read},
		{Name: "w", Module: "other", Kind: Write},
	}
	syms := Analyze(decls, refs)
	require.Len(t, syms, 1)
	assert.Equal(t, SymbolUsage{Module: "m", Name: "w", Kind: DeclNet, Class: ReadOnly,
		Used: true, RefCount: 2, ReadCount: 2}, syms[0])
}

func TestScanAssignment(t *testing.T) {
	tests := []struct {
		name string
		text string
		ok   bool
		op   AssignOp
		lhs  string
		rhs  string
	}{
		{"blocking", "a = b;", true, BlockingOrCont, "a", "b"},
		{"nonblocking", "q <= d + 1;", true, Nonblocking, "q", "d + 1"},
		{"equality in select", "x[i==1] = y;", true, BlockingOrCont, "x[i==1]", "y"},
		{"op assign", "c += 2;", true, BlockingOrCont, "c", "2"},
		{"shift assign", "a <<= 1;", true, BlockingOrCont, "a", "1"},
		{"concat", "{a, b} = c;", true, BlockingOrCont, "{a, b}", "c"},
		{"string rhs", `s = "x;y";`, true, BlockingOrCont, "s", `"x;y"`},
		{"rhs stops at comma", "a = b, c = d;", true, BlockingOrCont, "a", "b"},
		{"comparison only", "a == b;", false, "", "", ""},
		{"list item", "x, y = 1;", false, "", "", ""},
		{"unterminated", "a = b", false, "", "", ""},
		{"closer first", "a) = b;", false, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scanAssignment(tt.text, 0)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (%+v)", ok, tt.ok, got)
			}
			if !ok {
				return
			}
			if got.op != tt.op || got.lhs != tt.lhs || got.rhs != tt.rhs {
				t.Fatalf("got %+v, want op=%s lhs=%q rhs=%q", got, tt.op, tt.lhs, tt.rhs)
			}
			if tt.text[got.rhsStart:got.rhsEnd] != tt.rhs {
				t.Fatalf("rhs span %d..%d does not cover %q", got.rhsStart, got.rhsEnd, tt.rhs)
			}
		})
	}
}

func TestCompoundAssignmentReadsTarget(t *testing.T) {
	res := collect(t, `module m(input logic clk, input logic [3:0] s);
  logic [3:0] u;
  logic [3:0] v;
  always @(posedge clk) begin
    u += s;
    v = s;
  end
endmodule
`)
	syms := res.Symbols()

	u := symbol(t, syms, "u")
	assert.Equal(t, ReadWrite, u.Class)
	assert.Equal(t, 1, u.ReadCount)
	assert.Equal(t, 1, u.WriteCount)
	assert.Equal(t, WriteOnly, symbol(t, syms, "v").Class)
	assert.Equal(t, ReadOnly, symbol(t, syms, "s").Class)
}

type shiftedLines struct {
	*source.LineMap
	file string
}

func (s shiftedLines) ToLines(sp source.Span) source.Location {
	loc := s.LineMap.ToLines(sp)
	loc.Line += 10
	loc.EndLine += 10
	loc.File = s.file
	return loc
}

func TestCollectorUsesLocator(t *testing.T) {
	text := "module top; wire w; endmodule\n"
	root, err := sv.ParseText("t.sv", text, sv.ParseOptions{})
	require.NoError(t, err)

	c := NewCollector(text, shiftedLines{LineMap: source.NewLineMap(text), file: "inc.svh"})
	require.NoError(t, syntax.Visit(root, c))
	res := c.Result()

	require.Len(t, res.Declarations, 2)
	w := res.Declarations[1]
	assert.Equal(t, "w", w.Name)
	assert.Equal(t, source.Location{Line: 11, Col: 18, EndLine: 11, EndCol: 19, File: "inc.svh"}, w.Loc)
}
