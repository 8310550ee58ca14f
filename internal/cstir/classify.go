package cstir

import (
	"github.com/robert-at-pretension-io/sv-lint/internal/sv"
)

var punctKinds = map[string]string{
	";":  "semi",
	",":  "comma",
	"(":  "lparen",
	")":  "rparen",
	"[":  "lbracket",
	"]":  "rbracket",
	"{":  "lbrace",
	"}":  "rbrace",
	":":  "colon",
	"::": "scope",
	".":  "dot",
	".*": "conn_wildcard",
	"#":  "hash",
	"##": "cycle_delay",
	"@":  "at",
	"'":  "apostrophe",
	"$":  "dollar",
	"(*": "attr_open",
	"*)": "attr_close",

	"=":    "op_eq",
	"<=":   "op_le",
	"==":   "op_eqeq",
	"!=":   "op_ne",
	"===":  "op_case_eq",
	"!==":  "op_case_ne",
	"==?":  "op_wild_eq",
	"!=?":  "op_wild_ne",
	"<":    "op_lt",
	">":    "op_gt",
	">=":   "op_ge",
	"+":    "op_plus",
	"-":    "op_minus",
	"*":    "op_star",
	"/":    "op_div",
	"%":    "op_mod",
	"**":   "op_pow",
	"&":    "op_and",
	"|":    "op_or",
	"^":    "op_xor",
	"~":    "op_not",
	"!":    "op_lnot",
	"~&":   "op_nand",
	"~|":   "op_nor",
	"~^":   "op_xnor",
	"^~":   "op_xnor",
	"&&":   "op_land",
	"||":   "op_lor",
	"<<":   "op_shl",
	">>":   "op_shr",
	"<<<":  "op_ashl",
	">>>":  "op_ashr",
	"?":    "op_question",
	"++":   "op_inc",
	"--":   "op_dec",
	"->":   "op_implies",
	"<->":  "op_equiv",
	"+:":   "op_plus_colon",
	"-:":   "op_minus_colon",
	"+=":   "op_plus_eq",
	"-=":   "op_minus_eq",
	"*=":   "op_star_eq",
	"/=":   "op_div_eq",
	"%=":   "op_mod_eq",
	"&=":   "op_and_eq",
	"|=":   "op_or_eq",
	"^=":   "op_xor_eq",
	"<<=":  "op_shl_eq",
	">>=":  "op_shr_eq",
	"<<<=": "op_ashl_eq",
	">>>=": "op_ashr_eq",
}

// Classify names the lexical category of a token from its literal text.
// Known punctuation and keywords get dedicated names (op_eq, kw_module);
// everything else falls back to a coarse class.
func Classify(text string) string {
	if k, ok := punctKinds[text]; ok {
		return k
	}
	if sv.Keywords[text] {
		return "kw_" + text
	}
	if text == "" {
		return "symbol"
	}
	switch c := text[0]; {
	case len(text) >= 2 && text[:2] == "//":
		return "line_comment"
	case len(text) >= 2 && text[:2] == "/*":
		return "block_comment"
	case c == '`':
		return "macro_id"
	case c == '"':
		return "string"
	case c >= '0' && c <= '9', c == '\'' && len(text) > 1:
		return "number"
	case c == '$' && len(text) > 1 && isWord(text[1:]):
		return "sys_ident"
	case isWord(text):
		return "ident"
	}
	return "symbol"
}

func isWord(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
