// Package sv is the SystemVerilog front-end: a preprocessor, a lexer and a
// recursive-descent parser producing syntax trees for the IR builders.
package sv

import (
	"errors"

	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
)

// Options configures a full front-end run over one file.
type Options struct {
	IncludePaths    []string
	Defines         []string
	StripComments   bool
	IgnoreInclude   bool
	AllowIncomplete bool
}

// Result is what the front-end produced for one file. When preprocessing
// fails PPText falls back to the raw text and HasCST is false. When parsing
// fails Tree is nil unless incomplete trees are allowed.
type Result struct {
	PPText     string
	Defines    []Define
	Includes   []string
	Origins    *Origins
	Tree       *syntax.Node
	HasCST     bool
	Incomplete bool
	Err        error
}

// Parse preprocesses and parses text. It never returns a nil Result; a
// recoverable front-end failure is reported through Result.Err.
func Parse(path, text string, opts Options) *Result {
	pp, err := Preprocess(path, text, opts.PreprocessOptions())
	if err != nil {
		return &Result{PPText: text, Err: err}
	}
	return ParsePreprocessed(path, pp, opts)
}

// PreprocessOptions is the preprocessor subset of opts.
func (o Options) PreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		IncludePaths:  o.IncludePaths,
		Defines:       o.Defines,
		StripComments: o.StripComments,
		IgnoreInclude: o.IgnoreInclude,
	}
}

// ParsePreprocessed runs the parser over the output of Preprocess.
func ParsePreprocessed(path string, pp *Preprocessed, opts Options) *Result {
	res := &Result{PPText: pp.Text, Defines: pp.Defines, Includes: pp.Includes, Origins: pp.Origins}
	tree, err := ParseText(path, pp.Text, ParseOptions{AllowIncomplete: opts.AllowIncomplete})
	if err != nil {
		res.Err = err
		var pe *ParseError
		if tree == nil || !errors.As(err, &pe) {
			return res
		}
		res.Incomplete = true
	}
	res.Tree = tree
	res.HasCST = tree != nil
	return res
}
