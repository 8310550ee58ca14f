// Package filelist reads simulator-style .f files: source paths plus
// +incdir+, +define+, +libext+, -y, -v and nested -f directives.
package filelist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/robert-at-pretension-io/sv-lint/internal/config"
)

// Load is everything a set of filelists contributed, in encounter order.
type Load struct {
	Files   []string
	IncDirs []string
	Defines []string
	LibDirs []string
	LibExts []string
}

// Read loads the given filelists in order. Nested -f entries resolve
// relative to the including list; a list read twice is skipped and a cycle
// is an error.
func Read(paths ...string) (*Load, error) {
	l := &loader{processed: map[string]bool{}, processing: map[string]bool{}}
	for _, p := range paths {
		if err := l.process(p); err != nil {
			return nil, err
		}
	}
	return &l.out, nil
}

type loader struct {
	out        Load
	processed  map[string]bool
	processing map[string]bool
}

func (l *loader) process(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &config.Error{Kind: config.NotFound, Path: path, Err: err}
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	if l.processed[abs] {
		return nil
	}
	if l.processing[abs] {
		return &config.Error{Kind: config.InvalidValue, Detail: fmt.Sprintf("filelist cycle detected at %s", abs)}
	}
	l.processing[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return &config.Error{Kind: config.NotFound, Path: abs, Err: err}
	}
	if !utf8.Valid(data) {
		return &config.Error{Kind: config.InvalidUTF8, Path: abs}
	}
	lines, err := joinLines(abs, string(data))
	if err != nil {
		return err
	}
	base := filepath.Dir(abs)
	for _, ln := range lines {
		if err := l.handle(abs, base, ln); err != nil {
			return err
		}
	}
	delete(l.processing, abs)
	l.processed[abs] = true
	return nil
}

type line struct {
	no   int
	text string
}

// joinLines folds backslash continuations and expands environment
// variables.
func joinLines(file, text string) ([]line, error) {
	var out []line
	var buf strings.Builder
	start := 0
	for i, raw := range strings.Split(text, "\n") {
		seg := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimRight(seg, " \t")
		continued := strings.HasSuffix(trimmed, "\\")
		if continued {
			seg = strings.TrimRight(strings.TrimSuffix(trimmed, "\\"), " \t")
		}
		if buf.Len() == 0 {
			start = i + 1
		}
		buf.WriteString(seg)
		if continued {
			continue
		}
		expanded, err := expandEnv(buf.String())
		if err != nil {
			return nil, lineErr(file, start, "%v", err)
		}
		out = append(out, line{no: start, text: expanded})
		buf.Reset()
	}
	if buf.Len() > 0 {
		return nil, lineErr(file, start, "trailing line continuation without content")
	}
	return out, nil
}

func (l *loader) handle(file, base string, ln line) error {
	t := strings.TrimSpace(ln.text)
	switch {
	case t == "", strings.HasPrefix(t, "//"), strings.HasPrefix(t, "#"):
		return nil
	case strings.HasPrefix(t, "+incdir+"):
		for _, e := range splitPlus(strings.TrimPrefix(t, "+incdir+")) {
			l.out.IncDirs = append(l.out.IncDirs, resolve(base, e))
		}
		return nil
	case strings.HasPrefix(t, "+define+"):
		l.out.Defines = append(l.out.Defines, splitPlus(strings.TrimPrefix(t, "+define+"))...)
		return nil
	case strings.HasPrefix(t, "+libext+"):
		for _, e := range splitPlus(strings.TrimPrefix(t, "+libext+")) {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			l.out.LibExts = append(l.out.LibExts, e)
		}
		return nil
	case strings.HasPrefix(t, "+"):
		return lineErr(file, ln.no, "unsupported directive %s", t)
	case strings.HasPrefix(t, "-f"):
		v, err := flagValue(file, ln.no, t, "-f")
		if err != nil {
			return err
		}
		return l.process(resolve(base, v))
	case strings.HasPrefix(t, "-y"):
		v, err := flagValue(file, ln.no, t, "-y")
		if err != nil {
			return err
		}
		dir := resolve(base, v)
		l.out.IncDirs = append(l.out.IncDirs, dir)
		l.out.LibDirs = append(l.out.LibDirs, dir)
		return nil
	case strings.HasPrefix(t, "-v"):
		v, err := flagValue(file, ln.no, t, "-v")
		if err != nil {
			return err
		}
		l.out.Files = append(l.out.Files, resolve(base, v))
		return nil
	}
	l.out.Files = append(l.out.Files, resolve(base, unquote(t)))
	return nil
}

// flagValue returns the single path argument of a "-f path" style line.
func flagValue(file string, no int, t, flag string) (string, error) {
	rest := strings.TrimPrefix(t, flag)
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", lineErr(file, no, "malformed %s directive %s", flag, t)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", lineErr(file, no, "%s missing path", flag)
	}
	tok, remainder, err := takeToken(rest)
	if err != nil {
		return "", lineErr(file, no, "%v", err)
	}
	if strings.TrimSpace(remainder) != "" {
		return "", lineErr(file, no, "extra tokens after %s", flag)
	}
	return tok, nil
}

// takeToken splits off one possibly quoted token.
func takeToken(s string) (string, string, error) {
	if q := s[0]; q == '"' || q == '\'' {
		end := strings.IndexByte(s[1:], q)
		if end < 0 {
			return "", "", fmt.Errorf("unterminated quote")
		}
		return s[1 : end+1], s[end+2:], nil
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i:], nil
	}
	return s, "", nil
}

// splitPlus splits a "+a+b" tail on '+' outside quotes, dropping empty
// entries and outer quotes.
func splitPlus(rest string) []string {
	var parts []string
	var cur strings.Builder
	var quote byte
	flush := func() {
		if v := unquote(cur.String()); v != "" {
			parts = append(parts, v)
		}
		cur.Reset()
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch {
		case c == '"' || c == '\'':
			if quote == 0 {
				quote = c
			} else if quote == c {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '+' && quote == 0:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return parts
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// expandEnv replaces $NAME, ${NAME} and $(NAME); "$$" is a literal '$'.
// An unset variable is an error.
func expandEnv(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		if next == '$' {
			b.WriteByte('$')
			i++
			continue
		}
		var name string
		if next == '{' || next == '(' {
			closing := byte('}')
			if next == '(' {
				closing = ')'
			}
			end := strings.IndexByte(s[i+2:], closing)
			if end < 0 {
				return "", fmt.Errorf("unterminated $%c variable", next)
			}
			name = s[i+2 : i+2+end]
			i += 2 + end
		} else {
			j := i + 1
			for j < len(s) && isIdent(s[j]) {
				j++
			}
			if j == i+1 {
				b.WriteByte('$')
				continue
			}
			name = s[i+1 : j]
			i = j - 1
		}
		val, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable $%s not set", name)
		}
		b.WriteString(val)
	}
	return b.String(), nil
}

func isIdent(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func lineErr(file string, no int, format string, args ...any) error {
	return &config.Error{Kind: config.InvalidValue,
		Detail: fmt.Sprintf("filelist %s:%d: %s", file, no, fmt.Sprintf(format, args...))}
}
