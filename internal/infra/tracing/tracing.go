// File: internal/infra/tracing/tracing.go
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by this control plane under a single
// instrumentation scope.
const TracerName = "github.com/imagerestore/controlplane"

// carrier adapts the two-field wire representation of a task's trace
// context (spec.md §3: "traceparent + tracestate") to the propagation.TextMapCarrier
// go.opentelemetry.io/otel expects.
type carrier struct {
	traceparent string
	tracestate  string
}

func (c *carrier) Get(key string) string {
	switch key {
	case "traceparent":
		return c.traceparent
	case "tracestate":
		return c.tracestate
	default:
		return ""
	}
}

func (c *carrier) Set(key, value string) {
	switch key {
	case "traceparent":
		c.traceparent = value
	case "tracestate":
		c.tracestate = value
	}
}

func (c *carrier) Keys() []string { return []string{"traceparent", "tracestate"} }

var propagator = propagation.TraceContext{}

// Inject captures the current span context of ctx into wire fields a queue
// task can carry (spec.md §3, §4.5).
func Inject(ctx context.Context) (traceparent, tracestate string) {
	c := &carrier{}
	propagator.Inject(ctx, c)
	return c.traceparent, c.tracestate
}

// Extract resumes a context carrying the remote span described by
// traceparent/tracestate, for a worker to start a child span from
// (spec.md §4.7 step 1: "Resume trace context from the task").
func Extract(ctx context.Context, traceparent, tracestate string) context.Context {
	c := &carrier{traceparent: traceparent, tracestate: tracestate}
	return propagator.Extract(ctx, c)
}

// Tracer returns the package-scoped tracer used across the admission and
// worker pipelines.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Bootstrap installs a stdout span exporter as the default tracer provider.
// A production deployment overrides this by installing a different exporter
// before Bootstrap is called; this control plane does not itself depend on
// a specific trace backend (spec.md §6 treats trace export as out-of-scope).
func Bootstrap(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)
	_ = serviceName
	return tp.Shutdown, nil
}
