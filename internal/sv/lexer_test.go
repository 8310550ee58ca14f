package sv

import (
	"testing"
)

func TestLexKinds(t *testing.T) {
	toks := Lex("module m; // note\n  assign y = 8'hFF + 'b1; /* c */ $display(\"hi\"); endmodule")
	want := []struct {
		kind TokenKind
		text string
	}{
		{TokKeyword, "module"},
		{TokIdent, "m"},
		{TokOperator, ";"},
		{TokLineComment, "// note"},
		{TokKeyword, "assign"},
		{TokIdent, "y"},
		{TokOperator, "="},
		{TokNumber, "8'hFF"},
		{TokOperator, "+"},
		{TokNumber, "'b1"},
		{TokOperator, ";"},
		{TokBlockComment, "/* c */"},
		{TokSystemIdent, "$display"},
		{TokOperator, "("},
		{TokString, "\"hi\""},
		{TokOperator, ")"},
		{TokOperator, ";"},
		{TokKeyword, "endmodule"},
		{TokEOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(toks), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Fatalf("token %d: expected %s %q, got %s %q", i, w.kind, w.text, toks[i].Kind, toks[i].Text)
		}
	}
}

func TestLexOffsetsCoverText(t *testing.T) {
	text := "always_ff @(posedge clk) q <= d;"
	for _, tok := range Lex(text) {
		if tok.Kind == TokEOF {
			if tok.Start != len(text) {
				t.Fatalf("eof at %d, want %d", tok.Start, len(text))
			}
			continue
		}
		if text[tok.Start:tok.End] != tok.Text {
			t.Fatalf("token %q does not match text at %d..%d", tok.Text, tok.Start, tok.End)
		}
	}
}

func TestLexOperatorsLongestMatch(t *testing.T) {
	toks := Lex("a <<<= b !== c <= d")
	var ops []string
	for _, tok := range toks {
		if tok.Kind == TokOperator {
			ops = append(ops, tok.Text)
		}
	}
	want := []string{"<<<=", "!==", "<="}
	if len(ops) != len(want) {
		t.Fatalf("expected %v, got %v", want, ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ops)
		}
	}
}

func TestLexNumbersAndIdentifiers(t *testing.T) {
	cases := []struct {
		in   string
		kind TokenKind
	}{
		{"12", TokNumber},
		{"1_000", TokNumber},
		{"3.14", TokNumber},
		{"4'sd7", TokNumber},
		{"16'h dead", TokNumber},
		{"'0", TokNumber},
		{"10ns", TokNumber},
		{"sig_1$", TokIdent},
		{"\\bus[0] ", TokIdent},
		{"logic", TokKeyword},
	}
	for _, tc := range cases {
		toks := Lex(tc.in)
		if toks[0].Kind != tc.kind {
			t.Fatalf("%q: expected %s, got %s (%q)", tc.in, tc.kind, toks[0].Kind, toks[0].Text)
		}
		if len(toks) != 2 {
			t.Fatalf("%q: expected a single token, got %+v", tc.in, toks)
		}
	}
}
