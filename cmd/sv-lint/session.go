package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-at-pretension-io/sv-lint/internal/config"
	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/filelist"
	"github.com/robert-at-pretension-io/sv-lint/internal/metrics"
	"github.com/robert-at-pretension-io/sv-lint/internal/pipeline"
	"github.com/robert-at-pretension-io/sv-lint/internal/tracing"
)

// addLintFlags registers the flags shared by every command that lints.
func addLintFlags(fs *pflag.FlagSet) {
	fs.StringSlice("only", nil, "enable only these rule ids")
	fs.StringSlice("disable", nil, "disable these rule ids")
	fs.Int("timeout-ms", 0, "plugin timeout per invocation in ms (100..60000)")
	fs.Int("jobs", 0, "files linted in parallel (0=auto)")
	fs.StringArrayP("filelist", "f", nil, "read sources, +incdir+ and +define+ from a filelist")
	fs.String("metrics-file", "", "write Prometheus textfile metrics here")
	fs.String("timing-file", "", "write JSONL timing records here")
	fs.Bool("trace", false, "export OpenTelemetry spans to stderr")
}

// session is one configured invocation: config, logger, run id and the
// optional metrics, tracing and timing sinks.
type session struct {
	cfg     *config.Config
	runID   string
	start   time.Time
	log     *slog.Logger
	events  *diag.Events
	metrics *metrics.Recorder
	tracing *tracing.Provider
	timing  *pipeline.TimingRecorder
	// listed are the sources named by filelists.
	listed []string
}

func newSession(cmd *cobra.Command, args []string) (*session, error) {
	s := &session{runID: uuid.NewString(), start: time.Now()}

	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	cfg, err := config.Load(explicit, root)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	if err := s.applyFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := cfg.Logging.DiagOptions()
	logger, err := diag.NewLogger(os.Stderr, opts)
	if err != nil {
		return nil, err
	}
	s.log = logger.With("run_id", s.runID)
	s.events = diag.New(s.log, opts)
	for _, key := range cfg.Unknown {
		s.events.Warn(cmd.Context(), diag.ConfigUnknownKey, "key", key, "path", cfg.Path)
	}

	s.metrics = metrics.New()
	if s.tracing, err = tracing.Setup(os.Stderr, cfg.Output.Trace, version); err != nil {
		return nil, err
	}
	if s.timing, err = pipeline.NewTimingRecorder(cfg.Output.TimingFile, s.runID, s.start); err != nil {
		return nil, err
	}
	return s, nil
}

// applyFlags layers command-line overrides over the loaded config.
func (s *session) applyFlags(flags *pflag.FlagSet) error {
	cfg := s.cfg

	only, err := flags.GetStringSlice("only")
	if err != nil {
		return fmt.Errorf("failed to get only flag: %w", err)
	}
	disable, err := flags.GetStringSlice("disable")
	if err != nil {
		return fmt.Errorf("failed to get disable flag: %w", err)
	}
	if err := cfg.ApplyOverrides(only, disable); err != nil {
		return err
	}

	if flags.Changed("timeout-ms") {
		if cfg.Defaults.TimeoutMSPerFile, err = flags.GetInt("timeout-ms"); err != nil {
			return fmt.Errorf("failed to get timeout-ms flag: %w", err)
		}
	}
	if flags.Changed("jobs") {
		if cfg.Defaults.Jobs, err = flags.GetInt("jobs"); err != nil {
			return fmt.Errorf("failed to get jobs flag: %w", err)
		}
	}
	for flag, dst := range map[string]*string{
		"log-level":    &cfg.Logging.Level,
		"log-format":   &cfg.Logging.Format,
		"color":        &cfg.Output.Color,
		"metrics-file": &cfg.Output.MetricsFile,
		"timing-file":  &cfg.Output.TimingFile,
	} {
		v, err := flags.GetString(flag)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
		if v != "" {
			*dst = v
		}
	}
	if flags.Changed("trace") {
		if cfg.Output.Trace, err = flags.GetBool("trace"); err != nil {
			return fmt.Errorf("failed to get trace flag: %w", err)
		}
	}

	lists, err := flags.GetStringArray("filelist")
	if err != nil {
		return fmt.Errorf("failed to get filelist flag: %w", err)
	}
	if len(lists) > 0 {
		fl, err := filelist.Read(lists...)
		if err != nil {
			return err
		}
		cfg.SVParser.IncludePaths = append(cfg.SVParser.IncludePaths, fl.IncDirs...)
		cfg.SVParser.Defines = append(cfg.SVParser.Defines, fl.Defines...)
		s.listed = fl.Files
	}
	return nil
}

// files expands args and filelist sources into the lint set.
func (s *session) files(args []string) ([]string, error) {
	inputs := append(append([]string(nil), args...), s.listed...)
	if len(inputs) == 0 {
		return nil, errors.New("no input files; pass files, directories or -f <filelist>")
	}
	files, err := s.cfg.ResolveFiles(inputs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no SystemVerilog files matched defaults.include")
	}
	return files, nil
}

func (s *session) pipeline(onFile func(*pipeline.FileResult)) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Options{
		Config:  s.cfg,
		Events:  s.events,
		Metrics: s.metrics,
		Tracer:  s.tracing.Tracer(),
		Timing:  s.timing,
		OnFile:  onFile,
	})
}

// close flushes every sink.
func (s *session) close(ctx context.Context) error {
	var errs []error
	if err := s.timing.Close(); err != nil {
		errs = append(errs, fmt.Errorf("timing: %w", err))
	}
	if err := s.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if path := s.cfg.Output.MetricsFile; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
