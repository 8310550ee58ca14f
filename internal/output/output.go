// Package output prints violations as
//
//	path:line:col: [severity] rule_id: message
//
// with line and column raised to at least 1.
package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
)

// Color modes accepted by New.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Printer struct {
	w   io.Writer
	sev map[protocol.Severity]*color.Color
	dim *color.Color
}

// New returns a printer writing to w. In auto mode colors follow the
// terminal detection of the color package.
func New(w io.Writer, mode string) (*Printer, error) {
	var on bool
	switch mode {
	case "", ColorAuto:
		on = !color.NoColor
	case ColorAlways:
		on = true
	case ColorNever:
		on = false
	default:
		return nil, fmt.Errorf("unknown color mode %q", mode)
	}
	p := &Printer{
		w: w,
		sev: map[protocol.Severity]*color.Color{
			protocol.SeverityError:   color.New(color.FgRed, color.Bold),
			protocol.SeverityWarning: color.New(color.FgYellow, color.Bold),
			protocol.SeverityInfo:    color.New(color.FgCyan),
		},
		dim: color.New(color.Faint),
	}
	for _, c := range append([]*color.Color{p.dim}, p.sevColors()...) {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p, nil
}

func (p *Printer) sevColors() []*color.Color {
	out := make([]*color.Color, 0, len(p.sev))
	for _, c := range p.sev {
		out = append(out, c)
	}
	return out
}

// Format renders one violation. A location naming a file wins over path.
func (p *Printer) Format(path string, v protocol.Violation) string {
	loc := v.Location.Clamped()
	if loc.File != "" {
		path = loc.File
	}
	sev := fmt.Sprintf("[%s]", v.Severity)
	if c, ok := p.sev[v.Severity]; ok {
		sev = c.Sprint(sev)
	}
	return fmt.Sprintf("%s:%d:%d: %s %s: %s", path, loc.Line, loc.Col, sev, v.RuleID, v.Message)
}

// Print writes every violation of one file on its own line.
func (p *Printer) Print(path string, vs []protocol.Violation) error {
	bw := bufio.NewWriter(p.w)
	for _, v := range vs {
		if _, err := fmt.Fprintln(bw, p.Format(path, v)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Counts tallies violations by severity.
type Counts struct {
	Errors   int
	Warnings int
	Info     int
}

func (c *Counts) Add(vs []protocol.Violation) {
	for _, v := range vs {
		switch v.Severity {
		case protocol.SeverityError:
			c.Errors++
		case protocol.SeverityWarning:
			c.Warnings++
		default:
			c.Info++
		}
	}
}

func (c Counts) Total() int { return c.Errors + c.Warnings + c.Info }

// Summary writes the closing line of a run.
func (p *Printer) Summary(files int, c Counts, failed int) error {
	line := fmt.Sprintf("%d file(s), %d violation(s): %d error, %d warning, %d info",
		files, c.Total(), c.Errors, c.Warnings, c.Info)
	if failed > 0 {
		line += fmt.Sprintf("; %d file(s) with errors", failed)
	}
	_, err := fmt.Fprintln(p.w, p.dim.Sprint(line))
	return err
}
