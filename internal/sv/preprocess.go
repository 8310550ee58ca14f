package sv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/sv-lint/internal/source"
)

const (
	maxIncludeDepth = 32
	maxExpandDepth  = 64
)

// PreprocessOptions configures macro handling.
type PreprocessOptions struct {
	IncludePaths  []string
	Defines       []string // NAME or NAME=VALUE
	StripComments bool
	IgnoreInclude bool
}

// Define is one macro in the final macro set.
type Define struct {
	Name  string  `json:"name"`
	Value *string `json:"value"`
}

// Preprocessed is the output of Preprocess.
type Preprocessed struct {
	Text     string
	Defines  []Define
	Includes []string
	// Origins maps offsets in Text back to the root file or an include.
	Origins *Origins
}

type macro struct {
	name     string
	params   []string
	defaults []*string
	funcLike bool
	body     string
}

type condFrame struct {
	parentActive bool
	active       bool
	taken        bool
	elseSeen     bool
}

type preprocessor struct {
	opts     PreprocessOptions
	macros   map[string]*macro
	conds    []condFrame
	includes []string
	texts    map[string]string
}

// Preprocess expands macros, resolves includes and evaluates conditional
// compilation. Directive lines are replaced by blank lines so that the line
// numbers of untouched code survive.
func Preprocess(path, text string, opts PreprocessOptions) (*Preprocessed, error) {
	p := &preprocessor{opts: opts, macros: make(map[string]*macro), texts: map[string]string{path: text}}
	for _, d := range opts.Defines {
		name, value, hasValue := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		m := &macro{name: name}
		if hasValue {
			m.body = strings.TrimSpace(value)
		}
		p.macros[name] = m
	}

	out := &emitter{}
	out.b.Grow(len(text))
	if err := p.run(out, origin{file: path}, text, 0); err != nil {
		return nil, err
	}
	if len(p.conds) > 0 {
		return nil, p.fail(path, text, len(text), "missing `endif")
	}
	origins := &Origins{root: path, segs: out.segs, lines: make(map[string]*source.LineMap, len(p.texts))}
	for file, t := range p.texts {
		origins.lines[file] = source.NewLineMap(t)
	}
	return &Preprocessed{Text: out.String(), Defines: p.defineSet(), Includes: p.includes, Origins: origins}, nil
}

func (p *preprocessor) defineSet() []Define {
	out := make([]Define, 0, len(p.macros))
	for _, m := range p.macros {
		d := Define{Name: m.name}
		if m.body != "" {
			v := m.body
			d.Value = &v
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *preprocessor) active() bool {
	return len(p.conds) == 0 || p.conds[len(p.conds)-1].active
}

func (p *preprocessor) fail(file, text string, off int, format string, args ...any) error {
	loc := source.NewLineMap(text).Point(off)
	return &ParseError{
		Kind:   PreprocessFailed,
		File:   file,
		Line:   loc.Line,
		Col:    loc.Col,
		Detail: fmt.Sprintf(format, args...),
	}
}

// run processes text from src and appends the result to out.
func (p *preprocessor) run(out *emitter, src origin, text string, depth int) error {
	file := src.file
	i := 0
	line := 1
	emit := func(at int, s string) {
		if p.active() {
			out.verbatim(src, at, s)
		} else {
			out.newlines(src, at, strings.Count(s, "\n"))
		}
	}
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\n':
			out.verbatim(src, i, "\n")
			line++
			i++
		case strings.HasPrefix(text[i:], "//"):
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text) - i
			}
			if !p.opts.StripComments {
				emit(i, text[i:i+end])
			}
			i += end
		case strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return p.fail(file, text, i, "unterminated block comment")
			}
			comment := text[i : i+2+end+2]
			if p.opts.StripComments {
				out.newlines(src, i, strings.Count(comment, "\n"))
			} else {
				emit(i, comment)
			}
			line += strings.Count(comment, "\n")
			i += len(comment)
		case c == '"':
			j := i + 1
			for j < len(text) && text[j] != '"' && text[j] != '\n' {
				if text[j] == '\\' && j+1 < len(text) {
					j++
				}
				j++
			}
			if j < len(text) && text[j] == '"' {
				j++
			}
			emit(i, text[i:j])
			i = j
		case c == '`':
			j := i + 1
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			name := text[i+1 : j]
			if name == "" {
				emit(i, "`")
				i++
				continue
			}
			next, consumed, err := p.directive(out, src, text, i, j, name, line, depth)
			if err != nil {
				return err
			}
			line += consumed
			i = next
		case isIdentStart(c):
			j := i
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			emit(i, text[i:j])
			i = j
		default:
			if p.active() {
				out.verbatim(src, i, text[i:i+1])
			}
			i++
		}
	}
	return nil
}

// directive handles a backtick word starting at start whose name ends at
// nameEnd. It returns the resume offset and the number of newlines consumed.
func (p *preprocessor) directive(out *emitter, src origin, text string, start, nameEnd int, name string, line, depth int) (int, int, error) {
	file := src.file
	switch name {
	case "define":
		end, body := logicalLine(text, nameEnd)
		newlines := strings.Count(text[start:end], "\n")
		out.newlines(src, start, newlines)
		if p.active() {
			m, err := parseMacro(body)
			if err != nil {
				return 0, 0, p.fail(file, text, start, "%v", err)
			}
			p.macros[m.name] = m
		}
		return end, newlines, nil
	case "undef":
		word, end := nextWord(text, nameEnd)
		if word == "" {
			return 0, 0, p.fail(file, text, start, "`undef without a macro name")
		}
		if p.active() {
			delete(p.macros, word)
		}
		return end, 0, nil
	case "undefineall":
		if p.active() {
			p.macros = make(map[string]*macro)
		}
		return nameEnd, 0, nil
	case "ifdef", "ifndef":
		word, end := nextWord(text, nameEnd)
		if word == "" {
			return 0, 0, p.fail(file, text, start, "`%s without a macro name", name)
		}
		_, defined := p.macros[word]
		cond := defined == (name == "ifdef")
		parent := p.active()
		p.conds = append(p.conds, condFrame{parentActive: parent, active: parent && cond, taken: cond})
		return end, 0, nil
	case "elsif":
		word, end := nextWord(text, nameEnd)
		if len(p.conds) == 0 {
			return 0, 0, p.fail(file, text, start, "`elsif without `ifdef")
		}
		top := &p.conds[len(p.conds)-1]
		if top.elseSeen {
			return 0, 0, p.fail(file, text, start, "`elsif after `else")
		}
		_, defined := p.macros[word]
		top.active = top.parentActive && !top.taken && defined
		top.taken = top.taken || defined
		return end, 0, nil
	case "else":
		if len(p.conds) == 0 {
			return 0, 0, p.fail(file, text, start, "`else without `ifdef")
		}
		top := &p.conds[len(p.conds)-1]
		if top.elseSeen {
			return 0, 0, p.fail(file, text, start, "duplicate `else")
		}
		top.elseSeen = true
		top.active = top.parentActive && !top.taken
		top.taken = true
		return nameEnd, 0, nil
	case "endif":
		if len(p.conds) == 0 {
			return 0, 0, p.fail(file, text, start, "`endif without `ifdef")
		}
		p.conds = p.conds[:len(p.conds)-1]
		return nameEnd, 0, nil
	case "include":
		return p.include(out, src, text, start, nameEnd, depth)
	case "timescale", "default_nettype", "resetall", "celldefine", "endcelldefine",
		"unconnected_drive", "nounconnected_drive", "pragma", "line", "begin_keywords", "end_keywords":
		end := strings.IndexByte(text[nameEnd:], '\n')
		if end < 0 {
			return len(text), 0, nil
		}
		return nameEnd + end, 0, nil
	case "__FILE__":
		if p.active() {
			out.synth(src, start, strconv.Quote(file))
		}
		return nameEnd, 0, nil
	case "__LINE__":
		if p.active() {
			out.synth(src, start, strconv.Itoa(line))
		}
		return nameEnd, 0, nil
	}

	if !p.active() {
		return nameEnd, 0, nil
	}
	m, ok := p.macros[name]
	if !ok {
		return 0, 0, p.fail(file, text, start, "undefined macro `%s", name)
	}
	end := nameEnd
	var args []string
	if m.funcLike {
		var err error
		args, end, err = macroArgs(text, nameEnd)
		if err != nil {
			return 0, 0, p.fail(file, text, start, "macro `%s: %v", name, err)
		}
	}
	expanded, err := m.expand(args)
	if err != nil {
		return 0, 0, p.fail(file, text, start, "%v", err)
	}
	if depth >= maxExpandDepth {
		return 0, 0, p.fail(file, text, start, "macro `%s expands too deeply", name)
	}
	site := origin{file: file, fixed: true, at: start}
	if src.fixed {
		site.at = src.at
	}
	sub := &emitter{}
	if err := p.run(sub, site, expanded, depth+1); err != nil {
		return 0, 0, err
	}
	out.synth(src, start, strings.ReplaceAll(sub.String(), "\n", " "))
	newlines := strings.Count(text[nameEnd:end], "\n")
	out.newlines(src, end, newlines)
	return end, newlines, nil
}

func (p *preprocessor) include(out *emitter, src origin, text string, start, nameEnd, depth int) (int, int, error) {
	file := src.file
	i := nameEnd
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	if i >= len(text) || (text[i] != '"' && text[i] != '<') {
		return 0, 0, p.fail(file, text, start, "`include expects a quoted file name")
	}
	closer := byte('"')
	if text[i] == '<' {
		closer = '>'
	}
	j := strings.IndexByte(text[i+1:], closer)
	if j < 0 {
		return 0, 0, p.fail(file, text, start, "unterminated `include file name")
	}
	name := text[i+1 : i+1+j]
	end := i + 1 + j + 1
	if !p.active() || p.opts.IgnoreInclude {
		return end, 0, nil
	}
	if depth >= maxIncludeDepth {
		return 0, 0, p.fail(file, text, start, "include depth exceeds %d", maxIncludeDepth)
	}
	path, ok := p.resolveInclude(file, name)
	if !ok {
		return 0, 0, p.fail(file, text, start, "include file %q not found", name)
	}
	body, err := source.ReadFile(path)
	if err != nil {
		return 0, 0, &ParseError{Kind: PreprocessFailed, File: file, Detail: "reading include", Err: err}
	}
	p.includes = append(p.includes, path)
	p.texts[path] = body
	if err := p.run(out, origin{file: path}, body, depth+1); err != nil {
		return 0, 0, err
	}
	return end, 0, nil
}

func (p *preprocessor) resolveInclude(from, name string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, fileExists(name)
	}
	candidates := []string{filepath.Join(filepath.Dir(from), name)}
	for _, dir := range p.opts.IncludePaths {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// logicalLine returns the end offset of a directive line honouring
// backslash continuations, plus the joined body without the continuations.
func logicalLine(text string, from int) (int, string) {
	var body strings.Builder
	i := from
	for {
		nl := strings.IndexByte(text[i:], '\n')
		if nl < 0 {
			body.WriteString(text[i:])
			return len(text), body.String()
		}
		seg := text[i : i+nl]
		if strings.HasSuffix(seg, "\\") {
			body.WriteString(seg[:len(seg)-1])
			body.WriteByte(' ')
			i += nl + 1
			continue
		}
		body.WriteString(seg)
		return i + nl, body.String()
	}
}

func nextWord(text string, from int) (string, int) {
	i := from
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	j := i
	for j < len(text) && isIdentChar(text[j]) {
		j++
	}
	return text[i:j], j
}

// parseMacro parses the text following `define.
func parseMacro(def string) (*macro, error) {
	def = strings.TrimLeft(def, " \t")
	j := 0
	for j < len(def) && isIdentChar(def[j]) {
		j++
	}
	if j == 0 {
		return nil, fmt.Errorf("`define without a macro name")
	}
	m := &macro{name: def[:j]}
	rest := def[j:]
	if strings.HasPrefix(rest, "(") {
		closeIdx := strings.IndexByte(rest, ')')
		if closeIdx < 0 {
			return nil, fmt.Errorf("macro %s: unterminated parameter list", m.name)
		}
		m.funcLike = true
		for _, raw := range strings.Split(rest[1:closeIdx], ",") {
			name, def, hasDefault := strings.Cut(raw, "=")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			m.params = append(m.params, name)
			if hasDefault {
				v := strings.TrimSpace(def)
				m.defaults = append(m.defaults, &v)
			} else {
				m.defaults = append(m.defaults, nil)
			}
		}
		rest = rest[closeIdx+1:]
	}
	m.body = strings.TrimSpace(stripLineComment(rest))
	return m, nil
}

func stripLineComment(s string) string {
	inString := false
	for i := 0; i+1 < len(s); i++ {
		switch {
		case s[i] == '"':
			inString = !inString
		case !inString && s[i] == '/' && s[i+1] == '/':
			return s[:i]
		}
	}
	return s
}

// macroArgs parses a parenthesised, comma separated argument list starting
// at or after from. Commas nested in (), [], {} or strings do not split.
func macroArgs(text string, from int) ([]string, int, error) {
	i := from
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	if i >= len(text) || text[i] != '(' {
		return nil, 0, fmt.Errorf("expected argument list")
	}
	var args []string
	depth := 0
	argStart := i + 1
	inString := false
	for j := i + 1; j < len(text); j++ {
		c := text[j]
		if inString {
			if c == '\\' {
				j++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				args = append(args, strings.TrimSpace(text[argStart:j]))
				return args, j + 1, nil
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(text[argStart:j]))
				argStart = j + 1
			}
		}
	}
	return nil, 0, fmt.Errorf("unterminated argument list")
}

func (m *macro) expand(args []string) (string, error) {
	if !m.funcLike {
		return m.body, nil
	}
	if len(args) == 1 && args[0] == "" && len(m.params) == 0 {
		args = nil
	}
	if len(args) > len(m.params) {
		return "", fmt.Errorf("macro `%s takes %d arguments, got %d", m.name, len(m.params), len(args))
	}
	values := make(map[string]string, len(m.params))
	for i, name := range m.params {
		switch {
		case i < len(args) && args[i] != "":
			values[name] = args[i]
		case m.defaults[i] != nil:
			values[name] = *m.defaults[i]
		case i < len(args):
			values[name] = ""
		default:
			return "", fmt.Errorf("macro `%s: missing argument %s", m.name, name)
		}
	}

	var b strings.Builder
	body := m.body
	for i := 0; i < len(body); {
		switch {
		case strings.HasPrefix(body[i:], "``"):
			i += 2
		case strings.HasPrefix(body[i:], "`\\`\""):
			b.WriteString("\\\"")
			i += 4
		case strings.HasPrefix(body[i:], "`\""):
			b.WriteByte('"')
			i += 2
		case isIdentStart(body[i]) && (i == 0 || body[i-1] != '`'):
			j := i
			for j < len(body) && isIdentChar(body[j]) {
				j++
			}
			word := body[i:j]
			if v, ok := values[word]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(word)
			}
			i = j
		case isIdentStart(body[i]):
			j := i
			for j < len(body) && isIdentChar(body[j]) {
				j++
			}
			b.WriteString(body[i:j])
			i = j
		default:
			b.WriteByte(body[i])
			i++
		}
	}
	return b.String(), nil
}
