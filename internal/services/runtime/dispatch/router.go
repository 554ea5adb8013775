package dispatch

import (
	"context"
	"log"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/arkomp/internal/services/runtime/storage"
	"github.com/louisbranch/arkomp/pkg/event"
)

const tracerName = "github.com/louisbranch/arkomp/internal/services/runtime/dispatch"

// Target applies an event to the operator it addresses. It reports false when
// no such operator is live.
type Target interface {
	Deliver(ev event.Event) (bool, error)
}

// Recorder stores routing outcomes.
type Recorder interface {
	RecordDelivery(ctx context.Context, record storage.DeliveryRecord) error
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder records every routing outcome.
func WithRecorder(recorder Recorder) Option {
	return func(r *Router) { r.recorder = recorder }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Router) { r.tracer = tp.Tracer(tracerName) }
}

// Router drains a Queue and delivers each event to its Target. Delivery is
// best effort: events for ids with no live operator are dropped.
type Router struct {
	queue    *Queue
	target   Target
	recorder Recorder
	tracer   trace.Tracer

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewRouter builds a router for queue and target.
func NewRouter(queue *Queue, target Target, opts ...Option) *Router {
	r := &Router{
		queue:  queue,
		target: target,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run routes events in arrival order until the queue is closed and drained or ctx
// is done.
func (r *Router) Run(ctx context.Context) error {
	for {
		ev, ok := r.queue.Receive(ctx)
		if !ok {
			return ctx.Err()
		}
		r.route(ctx, ev)
	}
}

func (r *Router) route(ctx context.Context, ev event.Event) {
	ctx, span := r.tracer.Start(ctx, "dispatch.deliver", trace.WithAttributes(
		attribute.String("arkomp.operator_id", ev.OperatorID()),
		attribute.String("arkomp.event_kind", string(ev.Kind)),
	))
	defer span.End()

	found, err := r.target.Deliver(ev)
	record := storage.DeliveryRecord{
		OperatorID: ev.OperatorID(),
		EventKind:  string(ev.Kind),
	}
	switch {
	case !found:
		r.dropped.Add(1)
		record.Outcome = storage.OutcomeDropped
		log.Printf("dispatch: dropped event for unknown operator op_id=%q kind=%s", ev.OperatorID(), ev.Kind)
	case err != nil:
		r.failed.Add(1)
		record.Outcome = storage.OutcomeFailed
		record.LastError = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "operator handler failed")
		log.Printf("dispatch: delivery failed op_id=%q kind=%s err=%v", ev.OperatorID(), ev.Kind, err)
	default:
		r.delivered.Add(1)
		record.Outcome = storage.OutcomeDelivered
	}
	span.SetAttributes(attribute.String("arkomp.outcome", string(record.Outcome)))
	r.record(ctx, ev, record)
}

func (r *Router) record(ctx context.Context, ev event.Event, record storage.DeliveryRecord) {
	if r.recorder == nil {
		return
	}
	if body, err := ev.MarshalJSON(); err == nil {
		record.Body = string(body)
	}
	// Outcomes are recorded even after ctx is cancelled.
	if err := r.recorder.RecordDelivery(context.WithoutCancel(ctx), record); err != nil {
		log.Printf("dispatch: record delivery op_id=%q err=%v", ev.OperatorID(), err)
	}
}

// Delivered returns the number of events handled by an operator.
func (r *Router) Delivered() uint64 { return r.delivered.Load() }

// Dropped returns the number of events addressed to unknown operators.
func (r *Router) Dropped() uint64 { return r.dropped.Load() }

// Failed returns the number of events whose handler panicked.
func (r *Router) Failed() uint64 { return r.failed.Load() }
