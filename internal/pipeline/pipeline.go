// Package pipeline lints files: each file is parsed once, its artifacts are
// built once, and every enabled stage is dispatched to the plugin in turn.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/sv-lint/internal/config"
	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/metrics"
	"github.com/robert-at-pretension-io/sv-lint/internal/payload"
	"github.com/robert-at-pretension-io/sv-lint/internal/plugin"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/sizeguard"
	"github.com/robert-at-pretension-io/sv-lint/internal/source"
	"github.com/robert-at-pretension-io/sv-lint/internal/sv"
	"github.com/robert-at-pretension-io/sv-lint/internal/tracing"
	"github.com/robert-at-pretension-io/sv-lint/internal/validator"
)

// Exit codes of a lint run.
const (
	ExitClean      = 0
	ExitViolations = 2
	ExitError      = 3
)

// Options wires a Pipeline. Only Config is required.
type Options struct {
	Config    *config.Config
	Events    *diag.Events
	Metrics   *metrics.Recorder
	Tracer    trace.Tracer
	Timing    *TimingRecorder
	Validator *validator.Validator
	// OnFile receives every result in input order.
	OnFile func(*FileResult)
}

type Pipeline struct {
	cfg        *config.Config
	events     *diag.Events
	metrics    *metrics.Recorder
	tracer     trace.Tracer
	timing     *TimingRecorder
	validator  *validator.Validator
	dispatcher *plugin.Dispatcher
	rules      map[string]config.Rule
	onFile     func(*FileResult)
}

// New builds a pipeline over a loaded config. The rule index is taken at
// this point; later changes to cfg.Rules need a new Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: nil config")
	}
	p := &Pipeline{
		cfg:       opts.Config,
		events:    opts.Events,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		timing:    opts.Timing,
		validator: opts.Validator,
		rules:     opts.Config.RuleIndex(),
		onFile:    opts.OnFile,
	}
	if p.events == nil {
		p.events = diag.Discard()
	}
	if p.tracer == nil {
		p.tracer = tracing.Noop().Tracer()
	}
	if p.validator == nil {
		v, err := validator.New()
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		p.validator = v
	}
	p.dispatcher = plugin.NewDispatcher(plugin.Options{
		Timeout:          time.Duration(p.cfg.TimeoutMS()) * time.Millisecond,
		MaxResponseBytes: p.cfg.Transport.MaxResponseBytes,
		Dir:              p.cfg.Dir,
		Validator:        p.validator,
		Events:           p.events,
	})
	return p, nil
}

// FileResult is everything one file produced.
type FileResult struct {
	Path       string
	Violations []protocol.Violation
	Outcomes   []sizeguard.Outcome
	HasCST     bool
	// ParseErr is the recoverable front-end failure, if any.
	ParseErr error
	// StageErrs are stage-level failures; the other stages still ran.
	StageErrs []error
	// Err is a file-level failure. Stages after it did not run.
	Err      error
	Duration time.Duration
}

// HadError reports whether the file taints the run.
func (r *FileResult) HadError() bool {
	if r.Err != nil || len(r.StageErrs) > 0 {
		return true
	}
	for _, o := range r.Outcomes {
		if o.FailCI {
			return true
		}
	}
	return false
}

func (r *FileResult) status() string {
	switch {
	case r.Err != nil:
		return "error"
	case r.HadError():
		return "failed"
	}
	return "ok"
}

// Summary accumulates file results over one run.
type Summary struct {
	Files           int
	ViolationsCount int
	FailedFiles     int
	HadError        bool
}

func (s *Summary) Add(r *FileResult) {
	s.Files++
	s.ViolationsCount += len(r.Violations)
	if r.HadError() {
		s.FailedFiles++
		s.HadError = true
	}
}

// ExitCode is 3 when anything errored, else 2 with violations, else 0.
func (s Summary) ExitCode() int {
	switch {
	case s.HadError:
		return ExitError
	case s.ViolationsCount > 0:
		return ExitViolations
	}
	return ExitClean
}

// Jobs is the number of files linted at once for n files.
func (p *Pipeline) Jobs(n int) int {
	jobs := p.cfg.Defaults.Jobs
	if jobs <= 0 {
		jobs = min(runtime.NumCPU(), n)
	}
	return max(jobs, 1)
}

// Run lints paths concurrently and hands results to OnFile in input order.
// It returns an error only when ctx is cancelled; file failures are in the
// summary.
func (p *Pipeline) Run(ctx context.Context, paths []string) (Summary, error) {
	start := time.Now()
	results := make([]*FileResult, len(paths))
	done := make([]chan struct{}, len(paths))
	for i := range done {
		done[i] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Jobs(len(paths)))
	waited := make(chan error, 1)
	go func() {
		for i, path := range paths {
			g.Go(func() error {
				defer close(done[i])
				if err := gctx.Err(); err != nil {
					results[i] = &FileResult{Path: path, Err: err}
					return err
				}
				results[i] = p.LintFile(gctx, path)
				return nil
			})
		}
		waited <- g.Wait()
	}()

	var sum Summary
	for i := range paths {
		<-done[i]
		sum.Add(results[i])
		if p.onFile != nil {
			p.onFile(results[i])
		}
	}
	err := <-waited

	status := "ok"
	if sum.HadError {
		status = "error"
	}
	p.timing.RecordRun(status, start, time.Since(start))
	return sum, err
}

// LintFile reads and lints one file.
func (p *Pipeline) LintFile(ctx context.Context, path string) *FileResult {
	text, err := source.ReadFile(path)
	if err != nil {
		start := time.Now()
		res := &FileResult{Path: path, Err: err}
		p.finishFile(ctx, res, start)
		return res
	}
	return p.LintText(ctx, path, text)
}

// LintText lints text as the contents of path.
func (p *Pipeline) LintText(ctx context.Context, path, text string) *FileResult {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "lint_file", trace.WithAttributes(tracing.AttrPath.String(path)))
	defer span.End()

	res := &FileResult{Path: path}
	defer func() {
		p.finishFile(ctx, res, start)
		span.SetAttributes(tracing.AttrStatus.String(res.status()))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	art, err := p.artifacts(ctx, path, text)
	if err != nil {
		res.Err = err
		return res
	}
	res.HasCST = art.HasCST
	res.ParseErr = art.ParseErr

	for _, stage := range p.cfg.Stages.Enabled {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		out, err := p.runStage(ctx, art.Artifacts, stage)
		res.Outcomes = append(res.Outcomes, out)
		res.Violations = append(res.Violations, out.Violations...)
		if err == nil {
			continue
		}
		if plugin.KindOf(err).FileLevel() {
			res.Err = err
			return res
		}
		res.StageErrs = append(res.StageErrs, err)
	}
	return res
}

func (p *Pipeline) finishFile(ctx context.Context, res *FileResult, start time.Time) {
	res.Duration = time.Since(start)
	if res.Err != nil {
		p.events.Error(ctx, diag.FileError, "path", res.Path, "error", res.Err.Error())
		if p.metrics != nil {
			p.metrics.FileErrors.Inc()
		}
	}
	if p.metrics != nil {
		p.metrics.FilesLinted.Inc()
	}
	p.timing.RecordFile(res.Path, res.status(), start, res.Duration)
}

// Parsed is the artifact set of one file plus the front-end failure it
// recovered from.
type Parsed struct {
	*payload.Artifacts
	ParseErr error
}

// Artifacts reads and parses path without dispatching any stage.
func (p *Pipeline) Artifacts(ctx context.Context, path string) (*Parsed, error) {
	text, err := source.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.artifacts(ctx, path, text)
}

func (p *Pipeline) artifacts(ctx context.Context, path, text string) (*Parsed, error) {
	start := time.Now()
	log := p.events.With("path", path)
	opts := p.cfg.FrontEndOptions()

	log.Info(ctx, diag.ParsePreprocessStart)
	var fe *sv.Result
	pp, err := sv.Preprocess(path, text, opts.PreprocessOptions())
	if err != nil {
		log.Info(ctx, diag.ParsePreprocessDone, "ok", false)
		fe = &sv.Result{PPText: text, Err: err}
	} else {
		log.Info(ctx, diag.ParsePreprocessDone, "ok", true, "defines", len(pp.Defines), "includes", len(pp.Includes))
		log.Info(ctx, diag.ParseParseStart)
		fe = sv.ParsePreprocessed(path, pp, opts)
		log.Info(ctx, diag.ParseParseDone, "has_cst", fe.HasCST, "incomplete", fe.Incomplete)
	}
	if fe.Err != nil {
		log.Warn(ctx, diag.ParseFailed, "error", fe.Err.Error(), "has_cst", fe.HasCST)
	}

	art, err := payload.Build(path, text, fe)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, diag.ParseASTCollectDone,
		"declarations", len(art.Usage.Declarations),
		"references", len(art.Usage.References),
		"symbols", len(art.Symbols))
	if p.metrics != nil {
		p.metrics.ParseDuration.Observe(time.Since(start).Seconds())
	}
	return &Parsed{Artifacts: art, ParseErr: fe.Err}, nil
}
