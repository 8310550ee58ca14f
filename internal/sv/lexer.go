package sv

import (
	"strings"
)

// TokenKind is the lexical category of a token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokKeyword
	TokSystemIdent
	TokNumber
	TokString
	TokOperator
	TokLineComment
	TokBlockComment
)

var tokenKindNames = [...]string{
	TokEOF:          "eof",
	TokIdent:        "identifier",
	TokKeyword:      "keyword",
	TokSystemIdent:  "system_identifier",
	TokNumber:       "number",
	TokString:       "string",
	TokOperator:     "operator",
	TokLineComment:  "line_comment",
	TokBlockComment: "block_comment",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "unknown"
}

// Token is one lexical unit of preprocessed text.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

func (t Token) trivia() bool {
	return t.Kind == TokLineComment || t.Kind == TokBlockComment
}

func (t Token) is(text string) bool {
	return (t.Kind == TokOperator || t.Kind == TokKeyword) && t.Text == text
}

// Keywords recognised by the lexer. Anything else that looks like a word is
// an identifier.
var Keywords = map[string]bool{}

func init() {
	for _, k := range strings.Fields(`
		always always_comb always_ff always_latch and assign automatic begin bit buf byte
		case casex casez chandle const continue break default defparam disable do else end
		endcase endfunction endgenerate endmodule endtask enum event final for force forever
		function generate genvar if iff import initial inout input int integer interface inside
		localparam logic longint macromodule module nand negedge nor not or output packed
		package endpackage parameter posedge priority real realtime reg release repeat return ref scalared
		shortint shortreal signed static string struct supply0 supply1 task time tri tri0
		tri1 triand trior trireg type typedef union unique unique0 unsigned uwire var
		vectored void wait wand while wire wor xnor xor edge`) {
		Keywords[k] = true
	}
}

// operators sorted so that longer spellings win.
var operators = []string{
	"<<<=", ">>>=",
	"===", "!==", "==?", "!=?", "<<<", ">>>", "<<=", ">>=", "->>", "<->",
	"**", "==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "->", "+=", "-=", "*=", "/=",
	"%=", "&=", "|=", "^=", "++", "--", "::", "~&", "~|", "~^", "^~", "+:", "-:", ".*",
	"##", "(*", "*)",
}

// Lex splits text into tokens. Comments are returned as tokens; whitespace
// is dropped. Lexing never fails: unknown bytes become single-byte operators.
func Lex(text string) []Token {
	lx := lexer{src: text}
	var toks []Token
	for {
		tok := lx.next()
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks
		}
	}
}

type lexer struct {
	src string
	pos int
}

func (lx *lexer) next() Token {
	s := lx.src
	for lx.pos < len(s) && isSpace(s[lx.pos]) {
		lx.pos++
	}
	if lx.pos >= len(s) {
		return Token{Kind: TokEOF, Start: len(s), End: len(s)}
	}
	start := lx.pos
	c := s[start]
	switch {
	case strings.HasPrefix(s[start:], "//"):
		end := strings.IndexByte(s[start:], '\n')
		if end < 0 {
			end = len(s) - start
		}
		return lx.emit(TokLineComment, start, start+end)
	case strings.HasPrefix(s[start:], "/*"):
		end := strings.Index(s[start+2:], "*/")
		if end < 0 {
			return lx.emit(TokBlockComment, start, len(s))
		}
		return lx.emit(TokBlockComment, start, start+2+end+2)
	case c == '"':
		i := start + 1
		for i < len(s) && s[i] != '"' && s[i] != '\n' {
			if s[i] == '\\' && i+1 < len(s) {
				i++
			}
			i++
		}
		if i < len(s) && s[i] == '"' {
			i++
		}
		return lx.emit(TokString, start, i)
	case c == '$' && start+1 < len(s) && isIdentStart(s[start+1]):
		i := start + 1
		for i < len(s) && isIdentChar(s[i]) {
			i++
		}
		return lx.emit(TokSystemIdent, start, i)
	case c == '\\':
		i := start + 1
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		return lx.emit(TokIdent, start, i)
	case isIdentStart(c):
		i := start
		for i < len(s) && isIdentChar(s[i]) {
			i++
		}
		if Keywords[s[start:i]] {
			return lx.emit(TokKeyword, start, i)
		}
		return lx.emit(TokIdent, start, i)
	case isDigit(c):
		return lx.emit(TokNumber, start, lx.scanNumber(start))
	case c == '\'' && start+1 < len(s) && isUnbasedStart(s[start+1:]):
		return lx.emit(TokNumber, start, lx.scanBased(start+1))
	}
	for _, op := range operators {
		if strings.HasPrefix(s[start:], op) {
			return lx.emit(TokOperator, start, start+len(op))
		}
	}
	return lx.emit(TokOperator, start, start+1)
}

func (lx *lexer) emit(kind TokenKind, start, end int) Token {
	lx.pos = end
	return Token{Kind: kind, Text: lx.src[start:end], Start: start, End: end}
}

// scanNumber reads decimal, real and sized based literals such as 8'hFF.
func (lx *lexer) scanNumber(start int) int {
	s := lx.src
	i := start
	for i < len(s) && (isDigit(s[i]) || s[i] == '_') {
		i++
	}
	if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
		i++
		for i < len(s) && (isDigit(s[i]) || s[i] == '_') {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			i = j
			for i < len(s) && isDigit(s[i]) {
				i++
			}
		}
	}
	if i < len(s) && s[i] == '\'' && i+1 < len(s) && isBaseStart(s[i+1:]) {
		return lx.scanBased(i + 1)
	}
	switch {
	case strings.HasPrefix(s[i:], "ns"), strings.HasPrefix(s[i:], "ps"), strings.HasPrefix(s[i:], "us"),
		strings.HasPrefix(s[i:], "ms"), strings.HasPrefix(s[i:], "fs"):
		if i+2 >= len(s) || !isIdentChar(s[i+2]) {
			i += 2
		}
	case strings.HasPrefix(s[i:], "s") && (i+1 >= len(s) || !isIdentChar(s[i+1])):
		i++
	}
	return i
}

// scanBased reads the part after the apostrophe: [s]<base><digits> or an
// unbased unsized 0/1/x/z.
func (lx *lexer) scanBased(i int) int {
	s := lx.src
	if i < len(s) && (s[i] == 's' || s[i] == 'S') {
		i++
	}
	if i < len(s) && strings.IndexByte("bBoOdDhH", s[i]) >= 0 {
		i++
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		for i < len(s) && (isHexDigit(s[i]) || strings.IndexByte("xXzZ?_", s[i]) >= 0) {
			i++
		}
		return i
	}
	if i < len(s) {
		i++
	}
	return i
}

func isBaseStart(s string) bool {
	if s == "" {
		return false
	}
	if (s[0] == 's' || s[0] == 'S') && len(s) > 1 {
		s = s[1:]
	}
	return strings.IndexByte("bBoOdDhH", s[0]) >= 0
}

func isUnbasedStart(s string) bool {
	if isBaseStart(s) {
		return true
	}
	if strings.IndexByte("01xXzZ", s[0]) < 0 {
		return false
	}
	return len(s) == 1 || !isIdentChar(s[1])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
