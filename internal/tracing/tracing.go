// Package tracing builds the OpenTelemetry tracer used for per-file and
// per-stage spans. Spans go to a stdout-style exporter when enabled and
// nowhere otherwise.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const ServiceName = "sv-lint"

// Span attribute keys.
const (
	AttrPath   = attribute.Key("svlint.path")
	AttrStage  = attribute.Key("svlint.stage")
	AttrStatus = attribute.Key("svlint.status")
	AttrRunID  = attribute.Key("svlint.run_id")
)

// Provider hands out the tracer and flushes it on Shutdown.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Setup returns an exporting provider writing JSON spans to w when enabled,
// and a no-op provider otherwise.
func Setup(w io.Writer, enabled bool, version string) (*Provider, error) {
	if !enabled {
		return Noop(), nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return &Provider{tracer: tp.Tracer(ServiceName), shutdown: tp.Shutdown}, nil
}

// Noop returns a provider whose spans record nothing.
func Noop() *Provider {
	return &Provider{
		tracer:   noop.NewTracerProvider().Tracer(ServiceName),
		shutdown: func(context.Context) error { return nil },
	}
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
