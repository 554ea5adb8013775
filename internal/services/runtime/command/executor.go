package command

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/arkomp/internal/services/runtime/command"

// Executor runs commands against a Context. It is safe for concurrent use.
type Executor struct {
	ctx    *Context
	tracer trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) { e.tracer = tp.Tracer(tracerName) }
}

// NewExecutor returns an executor bound to c.
func NewExecutor(c *Context, opts ...Option) *Executor {
	e := &Executor{ctx: c, tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs cmd. It always produces a response; failures never escape as
// errors or panics.
func (e *Executor) Execute(ctx context.Context, cmd Command) (resp Response) {
	if cmd == nil {
		return Error("Command execution failed: command is required")
	}
	ctx, span := e.tracer.Start(ctx, "command."+cmd.CommandName(), trace.WithAttributes(
		attribute.String("arkomp.command", cmd.CommandName()),
	))
	defer func() {
		if r := recover(); r != nil {
			log.Printf("command: panic command=%s: %v\n%s", cmd.CommandName(), r, debug.Stack())
			resp = Error(fmt.Sprintf("Command execution failed: %v", r))
		}
		outcome := "success"
		if resp.Failed {
			outcome = "error"
			span.SetStatus(codes.Error, resp.Message)
		}
		span.SetAttributes(attribute.String("arkomp.outcome", outcome))
		span.End()
	}()
	return cmd.execute(ctx, e.ctx)
}

// ExecuteJSON decodes and runs one command in wire form.
func (e *Executor) ExecuteJSON(ctx context.Context, data []byte) Response {
	cmd, err := Decode(data)
	if err != nil {
		return Error(fmt.Sprintf("Command execution failed: %v", err))
	}
	return e.Execute(ctx, cmd)
}
