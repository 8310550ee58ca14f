package cstir

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/smacker/go-tree-sitter/golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv-lint/internal/sv"
	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
)

const sample = `module top(input logic clk, output logic q);
  // state
  always_ff @(posedge clk) q <= ~q;
  sub u (.*);
endmodule
`

func buildSV(t *testing.T, text string) *IR {
	t.Helper()
	res := sv.Parse("top.sv", text, sv.Options{})
	require.NoError(t, res.Err)
	ir, err := Build("top.sv", text, res.PPText, res.Tree)
	require.NoError(t, err)
	return ir
}

func checkInvariants(t *testing.T, ir *IR) {
	t.Helper()
	for i, tok := range ir.Tokens {
		require.Equal(t, i, tok.ID)
		require.LessOrEqual(t, tok.Start, tok.End)
		require.Less(t, tok.Kind, len(ir.TokKindTable))
	}
	for i, n := range ir.Nodes {
		require.Equal(t, i, n.ID, "node ids are dense")
		require.LessOrEqual(t, n.FirstToken, n.LastToken)
		require.Equal(t, ir.Tokens[n.FirstToken].Start, n.Start, "node %d start", n.ID)
		require.Equal(t, ir.Tokens[n.LastToken].End, n.End, "node %d end", n.ID)
		require.Less(t, n.Kind, len(ir.KindTable))
		if n.Parent == nil {
			require.Equal(t, 0, n.ID, "only the root has no parent")
			continue
		}
		parent := ir.Nodes[*n.Parent]
		require.Less(t, parent.ID, n.ID)
		require.LessOrEqual(t, parent.FirstToken, n.FirstToken)
		require.GreaterOrEqual(t, parent.LastToken, n.LastToken)
	}
}

func TestBuildSystemVerilog(t *testing.T) {
	ir := buildSV(t, sample)
	checkInvariants(t, ir)

	assert.Equal(t, SchemaVersion, ir.Schema)
	assert.Equal(t, "json", ir.Format)
	assert.Equal(t, "top.sv", ir.File)
	assert.Len(t, ir.Hash, 64)
	assert.Equal(t, []uint32{0, 45, 56, 92, 106, 116}, ir.LineStarts)
	assert.Equal(t, "SourceText", ir.KindTable[ir.Nodes[0].Kind])

	kinds := map[string]bool{}
	for _, tok := range ir.Tokens {
		kinds[ir.TokKindTable[tok.Kind]] = true
	}
	for _, want := range []string{"kw_module", "kw_always_ff", "op_le", "conn_wildcard", "line_comment", "ident", "semi"} {
		assert.True(t, kinds[want], want)
	}

	root := ir.Nodes[0]
	assert.Equal(t, 0, root.FirstToken)
	assert.Equal(t, len(ir.Tokens)-1, root.LastToken)
}

func TestBuildIsDeterministic(t *testing.T) {
	a := buildSV(t, sample)
	b := buildSV(t, sample)
	assert.Equal(t, a.KindTable, b.KindTable)
	assert.Equal(t, a.TokKindTable, b.TokKindTable)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestBuildDropsNodesWithoutTokens(t *testing.T) {
	root := syntax.NewNode("Root",
		syntax.NewNode("Empty"),
		syntax.NewNode("Outer", syntax.NewNode("Inner", syntax.NewLeaf("identifier", 0, 1, "a"))),
		syntax.NewLeaf("operator", 2, 3, ";"),
	)
	ir, err := Build("x.sv", "a ;", "a ;", root)
	require.NoError(t, err)
	checkInvariants(t, ir)

	var names []string
	for _, n := range ir.Nodes {
		names = append(names, ir.KindTable[n.Kind])
	}
	assert.Equal(t, []string{"Root", "Outer", "Inner"}, names)
	assert.Equal(t, []string{"Root", "Empty", "Outer", "Inner"}, ir.KindTable)
	require.NotNil(t, ir.Nodes[2].Parent)
	assert.Equal(t, 1, *ir.Nodes[2].Parent)
	assert.Equal(t, uint32(3), ir.Nodes[0].End)
}

func TestBuildEmptyTree(t *testing.T) {
	ir, err := Build("e.sv", "", "", syntax.NewNode("SourceText"))
	require.NoError(t, err)
	assert.Empty(t, ir.Nodes)
	assert.Empty(t, ir.Tokens)
	assert.Equal(t, []uint32{0}, ir.LineStarts)

	out, err := json.Marshal(ir)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"nodes":[]`)
}

func TestBuilderRejectsUnbalancedTraversal(t *testing.T) {
	b := NewBuilder("x.sv", "", "")
	require.NoError(t, b.Enter(syntax.NewNode("A")))
	_, err := b.IR()
	require.Error(t, err)
	require.Error(t, NewBuilder("x.sv", "", "").Leave(nil))
}

func TestBuildTreeSitterTree(t *testing.T) {
	src := []byte("package p\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")
	root, err := syntax.ParseTreeSitter(context.Background(), golang.GetLanguage(), src)
	require.NoError(t, err)

	ir, err := Build("add.go", string(src), string(src), root)
	require.NoError(t, err)
	checkInvariants(t, ir)
	require.NotEmpty(t, ir.Nodes)
	assert.Equal(t, "source_file", ir.KindTable[ir.Nodes[0].Kind])
}

func TestClassify(t *testing.T) {
	cases := map[string]string{
		"module":    "kw_module",
		"=":         "op_eq",
		"<=":        "op_le",
		".*":        "conn_wildcard",
		";":         "semi",
		"// x":      "line_comment",
		"/* x */":   "block_comment",
		"`FOO":      "macro_id",
		"8'hFF":     "number",
		"'0":        "number",
		"\"s\"":     "string",
		"$display":  "sys_ident",
		"data_in":   "ident",
		"\\esc[0] ": "symbol",
		"":          "symbol",
	}
	for in, want := range cases {
		assert.Equal(t, want, Classify(in), in)
	}
}
