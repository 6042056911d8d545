package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer of invocation spans.
const TracerName = "github.com/kaysia/kasa/internal/tool"

// ServiceName is the core service name under which the composition root
// publishes the *Dispatcher.
const ServiceName = "tool.dispatcher"

// Observer receives one observation per invocation.
type Observer interface {
	ObserveInvocation(tool string, status Status, kind ErrorKind, elapsed time.Duration)
}

// Dispatcher is the single entry point for tool invocations. It holds no
// per-call state; side effects happen only inside tool bodies.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
	now      func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTracer overrides the tracer, which defaults to the global provider's.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   slog.Default(),
		tracer:   otel.Tracer(TracerName),
		now:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Registry returns the registry the dispatcher routes to.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Invoke resolves name, validates raw against the tool's schema, runs the
// tool and normalizes the outcome. It never panics and never returns
// without an envelope.
func (d *Dispatcher) Invoke(ctx context.Context, name string, raw json.RawMessage) (env Envelope) {
	start := d.now()
	ctx, span := d.tracer.Start(ctx, "tool.invoke",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("tool.name", name)),
	)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", name, "panic", r, "stack", string(debug.Stack()))
			env = Envelope{Status: StatusError, Message: fmt.Sprintf("internal error: %v", r), Kind: KindInternal}
		}
		elapsed := d.now().Sub(start)
		d.finish(span, name, env, elapsed)
	}()

	return d.invoke(ctx, name, raw)
}

func (d *Dispatcher) invoke(ctx context.Context, name string, raw json.RawMessage) Envelope {
	reg, err := d.registry.lookup(name)
	if err != nil {
		return Envelope{Status: StatusError, Message: fmt.Sprintf("Tool %s not found", name), Kind: KindUnknownTool}
	}

	args, err := ParseArgs(raw)
	if err != nil {
		return Failure(err)
	}
	if err := reg.validate(args.values); err != nil {
		return Failure(err)
	}

	env, err := reg.tool.Invoke(ctx, args)
	if err != nil {
		return Failure(err)
	}
	if env.Status == "" {
		env.Status = StatusSuccess
	}
	return env
}

func (d *Dispatcher) finish(span trace.Span, name string, env Envelope, elapsed time.Duration) {
	span.SetAttributes(attribute.String("tool.status", string(env.Status)))
	if env.Status == StatusError {
		span.SetAttributes(attribute.String("tool.error_kind", string(env.Kind)))
		span.SetStatus(codes.Error, env.Message)
	}
	span.End()

	if d.observer != nil {
		d.observer.ObserveInvocation(name, env.Status, env.Kind, elapsed)
	}

	attrs := []any{"tool", name, "status", env.Status, "duration", elapsed}
	switch {
	case env.Status != StatusError:
		d.logger.Info("tool invoked", attrs...)
	case env.Kind == KindInternal || env.Kind == KindStore:
		d.logger.Error("tool failed", append(attrs, "kind", env.Kind, "error", env.Message)...)
	default:
		d.logger.Warn("tool rejected", append(attrs, "kind", env.Kind, "error", env.Message)...)
	}
}

// InvokeArgs is a convenience wrapper that marshals args before Invoke.
func (d *Dispatcher) InvokeArgs(ctx context.Context, name string, args map[string]any) Envelope {
	raw, err := json.Marshal(args)
	if err != nil {
		return Failure(errors.Join(&ValidationError{Reason: "arguments cannot be encoded"}, err))
	}
	return d.Invoke(ctx, name, raw)
}
