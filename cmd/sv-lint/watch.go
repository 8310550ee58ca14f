package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <file|dir>...",
	Short: "Lint, then re-lint files as they change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	addLintFlags(watchCmd.Flags())
	watchCmd.Flags().Duration("debounce", pipeline.DefaultDebounce, "quiet period before re-linting")
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("failed to get debounce flag: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "sv-lint: %v\n", err)
		}
	}()
	files, err := s.files(args)
	if err != nil {
		return err
	}

	lintOnce := func(paths []string) {
		rep, err := newReporter(os.Stdout, os.Stderr, s.cfg.Output.Color)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sv-lint: %v\n", err)
			return
		}
		p, err := s.pipeline(rep.file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sv-lint: %v\n", err)
			return
		}
		sum, err := p.Run(ctx, paths)
		if err != nil {
			return
		}
		_ = rep.summary(sum)
		s.events.Info(ctx, diag.WatchRun, "files", sum.Files, "violations", sum.ViolationsCount, "exit_code", sum.ExitCode())
	}

	w, err := pipeline.NewWatcher(s.cfg, pipeline.WatchOptions{
		Debounce: debounce,
		Events:   s.events,
		Metrics:  s.metrics,
	}, lintOnce)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(append(append([]string(nil), args...), s.listed...)); err != nil {
		return err
	}

	lintOnce(files)
	fmt.Fprintln(os.Stderr, "sv-lint: watching for changes (Ctrl-C to stop)")
	return w.Run(ctx)
}
