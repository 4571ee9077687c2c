package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reserviq/reserviq/internal/domain"
)

// TracingPublisher decorates a domain.EventPublisher with OpenTelemetry
// spans so enqueue latency and failures show up next to the repository
// spans of the same transition.
type TracingPublisher struct {
	next   domain.EventPublisher
	tracer trace.Tracer
}

var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, event domain.Event, r domain.Reservation) error {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithAttributes(publishAttributes(event, r)...))
	defer span.End()

	if err := p.next.Publish(ctx, event, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func publishAttributes(event domain.Event, r domain.Reservation) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("event.type", string(event)),
		attribute.String("reservation.id", r.ID),
		attribute.String("reservation.facility_id", r.FacilityID),
		attribute.String("reservation.status", string(r.Status)),
	}
}
