package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv-lint/internal/output"
	"github.com/robert-at-pretension-io/sv-lint/internal/pipeline"
)

var lintCmd = &cobra.Command{
	Use:   "lint [flags] <file|dir>...",
	Short: "Lint files and directories (the default command)",
	Args:  cobra.ArbitraryArgs,
	RunE:  runLint,
}

func init() {
	addLintFlags(lintCmd.Flags())
}

func runLint(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	files, err := s.files(args)
	if err != nil {
		return err
	}
	rep, err := newReporter(os.Stdout, os.Stderr, s.cfg.Output.Color)
	if err != nil {
		return err
	}
	p, err := s.pipeline(rep.file)
	if err != nil {
		return err
	}

	sum, runErr := p.Run(ctx, files)
	if err := rep.summary(sum); err != nil {
		return err
	}
	if err := s.close(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintf(os.Stderr, "sv-lint: %v\n", err)
		return exitStatus(pipeline.ExitError)
	}
	if runErr != nil {
		return runErr
	}
	if code := sum.ExitCode(); code != pipeline.ExitClean {
		return exitStatus(code)
	}
	return nil
}

// reporter prints violations to out and failures plus the run summary to
// errw.
type reporter struct {
	out    *output.Printer
	status *output.Printer
	errw   io.Writer
	counts output.Counts
}

func newReporter(out, errw io.Writer, color string) (*reporter, error) {
	p, err := output.New(out, color)
	if err != nil {
		return nil, err
	}
	st, err := output.New(errw, color)
	if err != nil {
		return nil, err
	}
	return &reporter{out: p, status: st, errw: errw}, nil
}

// file is called by the pipeline in input order, one goroutine at a time.
func (r *reporter) file(res *pipeline.FileResult) {
	if err := r.out.Print(res.Path, res.Violations); err != nil {
		fmt.Fprintf(r.errw, "sv-lint: write: %v\n", err)
	}
	r.counts.Add(res.Violations)
	if res.ParseErr != nil {
		fmt.Fprintf(r.errw, "sv-lint: warning: %s: parsed without a syntax tree: %v\n", res.Path, res.ParseErr)
	}
	for _, err := range res.StageErrs {
		fmt.Fprintf(r.errw, "sv-lint: error: %s: %v\n", res.Path, err)
	}
	if res.Err != nil {
		fmt.Fprintf(r.errw, "sv-lint: error: %s: %v\n", res.Path, res.Err)
	}
}

func (r *reporter) summary(sum pipeline.Summary) error {
	return r.status.Summary(sum.Files, r.counts, sum.FailedFiles)
}
