package sv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv-lint/internal/source"
)

func TestPreprocessObjectMacro(t *testing.T) {
	pp, err := Preprocess("a.sv", "`define W 8\nlogic [`W-1:0] x;\n", PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, "\nlogic [8-1:0] x;\n", pp.Text)
	require.Len(t, pp.Defines, 1)
	assert.Equal(t, "W", pp.Defines[0].Name)
	require.NotNil(t, pp.Defines[0].Value)
	assert.Equal(t, "8", *pp.Defines[0].Value)
}

func TestPreprocessFunctionMacro(t *testing.T) {
	text := "`define ADD(a, b=1) ((a) + (b))\nassign y = `ADD(x);\nassign z = `ADD(x, 2);\n"
	pp, err := Preprocess("a.sv", text, PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, "\nassign y = ((x) + (1));\nassign z = ((x) + (2));\n", pp.Text)
}

func TestPreprocessKeepsLineNumbers(t *testing.T) {
	text := "`define LONG a + \\\n  b\n`ifdef MISSING\nwire dropped;\n`endif\nwire kept;\n"
	pp, err := Preprocess("a.sv", text, PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, strings.Count(text, "\n"), strings.Count(pp.Text, "\n"))
	assert.NotContains(t, pp.Text, "dropped")
	lines := strings.Split(pp.Text, "\n")
	assert.Equal(t, "wire kept;", lines[5])
}

func TestPreprocessConditionals(t *testing.T) {
	text := "`ifdef A\na\n`elsif B\nb\n`else\nc\n`endif\n"
	cases := []struct {
		defines []string
		want    string
	}{
		{nil, "c"},
		{[]string{"A"}, "a"},
		{[]string{"B"}, "b"},
		{[]string{"A", "B"}, "a"},
	}
	for _, tc := range cases {
		pp, err := Preprocess("a.sv", text, PreprocessOptions{Defines: tc.defines})
		require.NoError(t, err)
		assert.Equal(t, tc.want, strings.TrimSpace(pp.Text), "defines %v", tc.defines)
	}
}

func TestPreprocessCommandLineDefineValue(t *testing.T) {
	pp, err := Preprocess("a.sv", "localparam N = `DEPTH;\n", PreprocessOptions{Defines: []string{"DEPTH=16"}})
	require.NoError(t, err)
	assert.Equal(t, "localparam N = 16;\n", pp.Text)
}

func TestPreprocessInclude(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "inc")
	require.NoError(t, os.MkdirAll(incDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(incDir, "defs.svh"), []byte("`define WIDTH 4\n"), 0o644))

	top := filepath.Join(dir, "top.sv")
	pp, err := Preprocess(top, "`include \"defs.svh\"\nlogic [`WIDTH-1:0] v;\n", PreprocessOptions{IncludePaths: []string{incDir}})
	require.NoError(t, err)
	assert.Contains(t, pp.Text, "logic [4-1:0] v;")
	assert.Equal(t, []string{filepath.Join(incDir, "defs.svh")}, pp.Includes)

	pp, err = Preprocess(top, "`include \"defs.svh\"\nwire w;\n", PreprocessOptions{IgnoreInclude: true})
	require.NoError(t, err)
	assert.Empty(t, pp.Includes)
}

func TestPreprocessStripComments(t *testing.T) {
	pp, err := Preprocess("a.sv", "wire a; // c\n/* x\n y */wire b;\n", PreprocessOptions{StripComments: true})
	require.NoError(t, err)
	assert.Equal(t, "wire a; \n\nwire b;\n", pp.Text)
}

func TestPreprocessErrors(t *testing.T) {
	cases := map[string]string{
		"undefined macro": "assign a = `NOPE;\n",
		"missing endif":   "`ifdef A\nwire a;\n",
		"stray endif":     "`endif\n",
		"missing include": "`include \"nowhere.svh\"\n",
	}
	for name, text := range cases {
		_, err := Preprocess("a.sv", text, PreprocessOptions{})
		require.Error(t, err, name)
		assert.True(t, IsKind(err, PreprocessFailed), name)
	}
}

func TestPreprocessMultiLineMacroCallKeepsLines(t *testing.T) {
	text := "`define PAIR(a, b) a + b\nassign y = `PAIR(x,\n  z);\nwire w;\n"
	pp, err := Preprocess("a.sv", text, PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, strings.Count(text, "\n"), strings.Count(pp.Text, "\n"))
	assert.Contains(t, pp.Text, "assign y = x + z")
}

func TestPreprocessOrigins(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "a.svh")
	require.NoError(t, os.WriteFile(inc, []byte("wire i;\n"), 0o644))
	top := filepath.Join(dir, "top.sv")
	text := "`define W 16\n`include \"a.svh\"\nlogic [`W-1:0] x;\n"

	pp, err := Preprocess(top, text, PreprocessOptions{})
	require.NoError(t, err)
	require.NotNil(t, pp.Origins)

	file, off := pp.Origins.Origin(strings.Index(pp.Text, "wire i"))
	assert.Equal(t, inc, file)
	assert.Equal(t, 0, off)

	file, off = pp.Origins.Origin(strings.Index(pp.Text, "16"))
	assert.Equal(t, top, file)
	assert.Equal(t, strings.Index(text, "`W"), off)

	x := strings.Index(pp.Text, "x;")
	loc := pp.Origins.ToLines(source.Span{Start: x, End: x + 1})
	assert.Equal(t, source.Location{Line: 3, Col: 16, EndLine: 3, EndCol: 17}, loc)

	i := strings.Index(pp.Text, "i;")
	loc = pp.Origins.ToLines(source.Span{Start: i, End: i + 1})
	assert.Equal(t, source.Location{Line: 1, Col: 6, EndLine: 1, EndCol: 7, File: inc}, loc)
}

func TestPreprocessOriginsInsideNestedMacros(t *testing.T) {
	text := "`define A 1\n`define B (`A + 2)\nassign y = `B; assign z = q;\n"
	pp, err := Preprocess("a.sv", text, PreprocessOptions{})
	require.NoError(t, err)
	assert.Contains(t, pp.Text, "assign y = (1 + 2); assign z = q;")

	use := strings.Index(text, "`B;")
	for _, s := range []string{"(1", "1 + 2", "2)"} {
		_, off := pp.Origins.Origin(strings.Index(pp.Text, s))
		assert.Equal(t, use, off, s)
	}
	_, off := pp.Origins.Origin(strings.Index(pp.Text, "q;"))
	assert.Equal(t, strings.Index(text, "q;"), off)
}
