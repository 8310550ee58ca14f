package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/payload"
	"github.com/robert-at-pretension-io/sv-lint/internal/plugin"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/sizeguard"
	"github.com/robert-at-pretension-io/sv-lint/internal/tracing"
)

// runStage dispatches one stage. The returned error is either stage-level
// or, for spawn and I/O failures, file-level; the outcome is valid in both
// cases.
func (p *Pipeline) runStage(ctx context.Context, art *payload.Artifacts, stage protocol.Stage) (sizeguard.Outcome, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "stage", trace.WithAttributes(
		tracing.AttrPath.String(art.Path),
		tracing.AttrStage.String(string(stage)),
	))
	defer span.End()
	log := p.events.With("path", art.Path, "stage", string(stage))

	out, err := p.dispatchStage(ctx, log, art, stage)
	out.Stage = stage
	if out.Violations == nil {
		out.Violations = []protocol.Violation{}
	}
	d := time.Since(start)
	out.DurationMS = d.Milliseconds()

	log.Info(ctx, diag.StageDone,
		"status", string(out.Status),
		"violations", len(out.Violations),
		"duration_ms", out.DurationMS,
		"fail_ci", out.FailCI)
	if err != nil {
		log.Error(ctx, diag.StageFailed, "error", err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p.metrics != nil {
			p.metrics.PluginErrors.WithLabelValues(string(stage), errorKind(err)).Inc()
		}
	}
	span.SetAttributes(tracing.AttrStatus.String(string(out.Status)))
	if p.metrics != nil {
		p.metrics.ObserveStage(string(stage), string(out.Status), d)
		for _, v := range out.Violations {
			p.metrics.Violations.WithLabelValues(string(stage), string(v.Severity)).Inc()
		}
	}
	p.timing.RecordStage(art.Path, string(stage), string(out.Status), start, d)
	return out, err
}

func (p *Pipeline) dispatchStage(ctx context.Context, log *diag.Events, art *payload.Artifacts, stage protocol.Stage) (sizeguard.Outcome, error) {
	if p.cfg.HasRules(stage) && len(p.cfg.EnabledRules(stage)) == 0 {
		return sizeguard.Outcome{Status: sizeguard.Skipped}, nil
	}
	log.Info(ctx, diag.StageStart)

	req, err := payload.Request(stage, art)
	if err != nil {
		return failed(), err
	}
	body, breach := p.cfg.Transport.CheckRequest(stage, req, p.cfg.StageRequired(stage))
	if breach != nil {
		return *breach, nil
	}
	if p.metrics != nil {
		p.metrics.RequestBytes.WithLabelValues(string(stage)).Observe(float64(len(body.Body)))
	}
	if body.NearLimit {
		log.Warn(ctx, diag.SizeWarn,
			"bytes", len(body.Body),
			"limit", p.cfg.Transport.MaxRequestBytes,
			"margin", p.cfg.Transport.WarnMarginBytes)
	}
	if err := p.validator.ValidateRequestJSON(body.Body); err != nil {
		return failed(), fmt.Errorf("request for stage %s: %w", stage, err)
	}

	reply, err := p.dispatcher.Invoke(ctx, plugin.Invocation{
		Path:    art.Path,
		Stage:   stage,
		Argv:    p.cfg.Command(stage),
		Request: body.Body,
	})
	if err != nil {
		var pe *plugin.Error
		if errors.As(err, &pe) && pe.Kind == plugin.StdoutTooLarge {
			return *sizeguard.OutputTooLarge(stage, pe.Bytes, p.dispatcher.StdoutLimit()), nil
		}
		return failed(), err
	}
	if o := p.cfg.Transport.CheckResponse(stage, len(reply.Stdout)); o != nil {
		return *o, nil
	}
	vs, err := p.dispatcher.Decode(stage, reply)
	if err != nil {
		return failed(), err
	}
	return sizeguard.Outcome{Status: sizeguard.Ran, Violations: p.applyOverrides(vs)}, nil
}

func failed() sizeguard.Outcome {
	return sizeguard.Outcome{Status: sizeguard.Failed, FailCI: true}
}

// applyOverrides drops violations of disabled rules and applies configured
// severities. Rule ids the config does not know pass through.
func (p *Pipeline) applyOverrides(vs []protocol.Violation) []protocol.Violation {
	out := make([]protocol.Violation, 0, len(vs))
	for _, v := range vs {
		if r, ok := p.rules[v.RuleID]; ok {
			if !r.IsEnabled() {
				continue
			}
			if r.Severity != "" {
				v.Severity = r.Severity
			}
		}
		out = append(out, v)
	}
	return out
}

// errorKind labels err for metrics.
func errorKind(err error) string {
	if k := plugin.KindOf(err); k != 0 {
		return k.String()
	}
	return "internal"
}
