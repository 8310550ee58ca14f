// Package payload turns the per-file parse artifacts into the stage-shaped
// payloads sent to plugins.
package payload

import (
	"fmt"

	"github.com/robert-at-pretension-io/sv-lint/internal/cstir"
	"github.com/robert-at-pretension-io/sv-lint/internal/source"
	"github.com/robert-at-pretension-io/sv-lint/internal/sv"
	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
	"github.com/robert-at-pretension-io/sv-lint/internal/usage"
)

// Artifacts is everything built from one file. It is built once, read by
// every stage and dropped when the file is done.
type Artifacts struct {
	Path       string
	RawText    string
	PPText     string
	Defines    []sv.Define
	HasCST     bool
	Incomplete bool
	CST        *cstir.IR
	Usage      *usage.Result
	Symbols    []usage.SymbolUsage
	Lines      *source.LineMap
}

// Build runs the CST builder and the usage collector over the front-end
// tree in a single traversal. Without a tree the cst and ast artifacts stay
// empty and HasCST is false.
func Build(path, raw string, fe *sv.Result) (*Artifacts, error) {
	art := &Artifacts{
		Path:       path,
		RawText:    raw,
		PPText:     fe.PPText,
		Defines:    fe.Defines,
		Incomplete: fe.Incomplete,
		Lines:      source.NewLineMap(fe.PPText),
		Usage:      &usage.Result{},
	}
	if !fe.HasCST || fe.Tree == nil {
		return art, nil
	}

	builder := cstir.NewBuilder(path, raw, fe.PPText)
	// cst stays in preprocessed coordinates; ast locations point at the
	// file that produced each identifier.
	var loc usage.Locator
	if fe.Origins != nil {
		loc = fe.Origins
	}
	collector := usage.NewCollector(fe.PPText, loc)
	if err := syntax.Visit(fe.Tree, builder, collector); err != nil {
		return nil, fmt.Errorf("building artifacts for %s: %w", path, err)
	}
	ir, err := builder.IR()
	if err != nil {
		return nil, fmt.Errorf("building cst ir for %s: %w", path, err)
	}
	art.CST = ir
	art.HasCST = true
	art.Usage = collector.Result()
	art.Symbols = art.Usage.Symbols()
	return art, nil
}
