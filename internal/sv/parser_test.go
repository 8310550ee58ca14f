package sv

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
)

const counterSource = `package pkg;
  typedef enum logic [1:0] {IDLE, RUN = 2'd1, DONE} state_t;
endpackage

// free-running counter
module counter import pkg::*; #(parameter int WIDTH = 8, parameter DEPTH = 4) (
  input  logic             clk,
  input  logic             rst_n,
  input  logic [WIDTH-1:0] din,
  output logic [WIDTH-1:0] dout
);
  localparam int MAX = (1 << WIDTH) - 1;
  state_t state;
  logic [WIDTH-1:0] count, next_count;
  typedef struct packed { logic valid; logic [3:0] data; } item_t;
  item_t item;

  function automatic logic [WIDTH-1:0] inc(input logic [WIDTH-1:0] v);
    return v + 1'b1;
  endfunction

  always_comb begin
    next_count = count;
    case (state)
      IDLE: next_count = '0;
      RUN, DONE: next_count = inc(count);
      default: ;
    endcase
  end

  always_ff @(posedge clk or negedge rst_n) begin : seq
    if (!rst_n) begin
      count <= '0;
      state <= IDLE;
    end else begin
      count <= next_count; /* advance */
      {item.valid, item.data} <= {1'b1, din[3:0]};
    end
  end

  genvar i;
  generate
    for (i = 0; i < DEPTH; i++) begin : g_stage
      wire [WIDTH-1:0] tap = count >> i;
    end
  endgenerate

  sub #(.W(WIDTH)) u_sub (.clk, .d(din), .q());

  initial begin
    for (int k = 0; k < 4; k++) $display("k=%0d", k);
  end

  assign dout = state == DONE ? count : {WIDTH{1'b0}};
endmodule : counter
`

func countKind(root *syntax.Node, kind string) int {
	n := 0
	_ = syntax.Walk(root, func(ev syntax.Event) error {
		if ev.Type == syntax.Enter && ev.Node.Kind == kind {
			n++
		}
		return nil
	})
	return n
}

func TestParseAnsiModule(t *testing.T) {
	src := "module top(input logic clk, input logic a, output logic y);\n  logic unused_sig;\n  assign y = a;\nendmodule\n"
	root, err := ParseText("top.sv", src, ParseOptions{})
	require.NoError(t, err)
	require.Equal(t, "SourceText", root.Kind)
	require.Len(t, root.Children, 1)

	mod := root.Children[0]
	assert.Equal(t, "ModuleDeclarationAnsi", mod.Kind)
	name := mod.Find("ModuleIdentifier")
	require.NotNil(t, name)
	assert.Equal(t, "top", name.FirstLeaf().Text)
	assert.Equal(t, 3, countKind(root, "AnsiPortDeclarationVariable"))
	assert.Equal(t, 1, countKind(root, "VariableDeclAssignment"))
	assert.Equal(t, 1, countKind(root, "NetAssignment"))
	assert.Equal(t, 0, mod.Start)
	assert.Equal(t, len(src)-1, mod.End)
}

func TestParseNonAnsiModule(t *testing.T) {
	src := `module m(a, y);
  input a;
  output y;
  wire a;
  reg y;
  always @(*) y = a;
endmodule
`
	root, err := ParseText("m.sv", src, ParseOptions{})
	require.NoError(t, err)
	mod := root.Children[0]
	assert.Equal(t, "ModuleDeclarationNonansi", mod.Kind)
	assert.Equal(t, 2, countKind(root, "Port"))
	assert.Equal(t, 1, countKind(root, "PortDeclarationInput"))
	assert.Equal(t, 1, countKind(root, "PortDeclarationOutput"))
	assert.Equal(t, 1, countKind(root, "NetDeclAssignment"))
	assert.Equal(t, 1, countKind(root, "BlockingAssignment"))
}

func TestParseCoversEveryToken(t *testing.T) {
	root, err := ParseText("counter.sv", counterSource, ParseOptions{})
	require.NoError(t, err)

	var want []string
	for _, tok := range Lex(counterSource) {
		if tok.Kind != TokEOF {
			want = append(want, tok.Text)
		}
	}
	var got []string
	for _, leaf := range root.Leaves() {
		got = append(got, leaf.Text)
	}
	assert.Equal(t, want, got)
}

func TestParseConstructs(t *testing.T) {
	root, err := ParseText("counter.sv", counterSource, ParseOptions{})
	require.NoError(t, err)

	for kind, want := range map[string]int{
		"PackageDeclaration":            1,
		"PackageImportDeclaration":      1,
		"ParameterDeclaration":          2,
		"LocalParameterDeclaration":     1,
		"EnumNameDeclaration":           3,
		"TypeDeclaration":               2,
		"StructUnionMember":             2,
		"FunctionDeclaration":           1,
		"CaseItem":                      3,
		"NonblockingAssignment":         4,
		"EventExpression":               2,
		"LoopGenerateConstruct":         1,
		"ModuleInstantiation":           1,
		"NamedParameterAssignment":      1,
		"NamedPortConnectionIdentifier": 3,
		"ForVariableDeclaration":        1,
		"SystemTfCall":                  1,
		"ConditionalExpression":         1,
		"MultipleConcatenation":         1,
		"FunctionSubroutineCall":        1,
	} {
		assert.Equal(t, want, countKind(root, kind), kind)
	}

	var comments []string
	for _, leaf := range root.Leaves() {
		if leaf.Kind == "line_comment" || leaf.Kind == "block_comment" {
			comments = append(comments, leaf.Text)
		}
	}
	assert.Equal(t, []string{"// free-running counter", "/* advance */"}, comments)
}

func TestParseIsDeterministic(t *testing.T) {
	a, err := ParseText("counter.sv", counterSource, ParseOptions{})
	require.NoError(t, err)
	b, err := ParseText("counter.sv", counterSource, ParseOptions{})
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(a, b))
}

func TestParseErrorLocation(t *testing.T) {
	_, err := ParseText("bad.sv", "module m;\n  assign = 1;\nendmodule\n", ParseOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, ParseFailed))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad.sv", pe.File)
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, 10, pe.Col)
}

func TestParseAllowIncomplete(t *testing.T) {
	src := "module bad;\n  assign = 1;\nendmodule\nmodule good;\n  wire w;\nendmodule\n"

	root, err := ParseText("two.sv", src, ParseOptions{})
	require.Error(t, err)
	assert.Nil(t, root)

	root, err = ParseText("two.sv", src, ParseOptions{AllowIncomplete: true})
	require.Error(t, err)
	require.NotNil(t, root)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "good", root.Children[0].Find("ModuleIdentifier").FirstLeaf().Text)
}

func TestParseDriver(t *testing.T) {
	res := Parse("a.sv", "`define W 4\nmodule a(output logic [`W-1:0] y);\n  assign y = '0;\nendmodule\n", Options{})
	require.NoError(t, res.Err)
	assert.True(t, res.HasCST)
	assert.False(t, res.Incomplete)
	assert.Contains(t, res.PPText, "logic [4-1:0] y")
	require.Len(t, res.Defines, 1)

	res = Parse("a.sv", "module a;\n  assign = ;\nendmodule\n", Options{})
	require.Error(t, res.Err)
	assert.False(t, res.HasCST)
	assert.Nil(t, res.Tree)
	assert.NotEmpty(t, res.PPText)

	res = Parse("a.sv", "assign y = `UNDEFINED;\n", Options{})
	assert.True(t, IsKind(res.Err, PreprocessFailed))
	assert.Equal(t, "assign y = `UNDEFINED;\n", res.PPText)
}
