// Package observability traces pipeline phases with OpenTelemetry and
// samples process resource usage at phase boundaries.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Output receives the exported spans; stderr when nil
	Output       io.Writer
	BatchTimeout time.Duration
}

var (
	mu     sync.RWMutex
	tracer trace.Tracer = noop.NewTracerProvider().Tracer("cura")
)

// InitTracing installs the global tracer and returns its shutdown func.
// When tracing is disabled spans are no-ops and shutdown does nothing.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		setTracer(noop.NewTracerProvider().Tracer(cfg.ServiceName))
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)
	otel.SetTracerProvider(tp)
	setTracer(tp.Tracer(cfg.ServiceName))

	return func(ctx context.Context) error {
		defer setTracer(noop.NewTracerProvider().Tracer(cfg.ServiceName))
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer: %w", err)
		}
		return nil
	}, nil
}

func setTracer(t trace.Tracer) {
	mu.Lock()
	defer mu.Unlock()
	tracer = t
}

func getTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

// Phase is the span of one pipeline phase
type Phase struct {
	span trace.Span
}

// StartPhase opens a span named phase
func StartPhase(ctx context.Context, phase string, attrs ...attribute.KeyValue) (context.Context, *Phase) {
	ctx, span := getTracer().Start(ctx, phase, trace.WithAttributes(attrs...))
	return ctx, &Phase{span: span}
}

// SetAttribute annotates the phase span
func (p *Phase) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	p.span.SetAttributes(attr)
}

// End closes the span, recording err when set
func (p *Phase) End(err error) {
	if err != nil {
		p.span.RecordError(err)
		p.span.SetStatus(codes.Error, err.Error())
	} else {
		p.span.SetStatus(codes.Ok, "")
	}
	p.span.End()
}
