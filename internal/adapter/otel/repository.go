package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reserviq/reserviq/internal/domain"
)

const tracerName = "github.com/reserviq/reserviq/internal/adapter/otel"

// TracingRepository wraps a domain.ReservationRepository with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and records
// errors. Lost-race guard misses are recorded but not marked as span errors;
// they are expected outcomes under concurrency.
type TracingRepository struct {
	next   domain.ReservationRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.ReservationRepository.
var _ domain.ReservationRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.ReservationRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, res domain.Reservation) error {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.Create",
		trace.WithAttributes(
			attribute.String("reservation.id", res.ID),
			attribute.String("reservation.facility_id", res.FacilityID),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, res)
	recordOutcome(span, err)
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.GetByID",
		trace.WithAttributes(attribute.String("reservation.id", id)),
	)
	defer span.End()

	res, err := r.next.GetByID(ctx, id)
	recordOutcome(span, err)
	return res, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	reservations, err := r.next.List(ctx, filter)
	recordOutcome(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reservations)))
	}
	return reservations, err
}

func (r *TracingRepository) UpdateStatusAndAudit(ctx context.Context, expected domain.Status, res domain.Reservation, entry domain.AuditEntry) error {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.UpdateStatusAndAudit",
		trace.WithAttributes(
			attribute.String("reservation.id", res.ID),
			attribute.String("reservation.status.expected", string(expected)),
			attribute.String("reservation.status.new", string(res.Status)),
			attribute.String("audit.action", string(entry.Action)),
		),
	)
	defer span.End()

	err := r.next.UpdateStatusAndAudit(ctx, expected, res, entry)
	recordGuardedOutcome(span, err)
	return err
}

func (r *TracingRepository) UpdateSchedule(ctx context.Context, id string, expected domain.Status, newEnd time.Time, entry domain.AuditEntry) error {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.UpdateSchedule",
		trace.WithAttributes(
			attribute.String("reservation.id", id),
			attribute.String("reservation.status.expected", string(expected)),
			attribute.String("audit.action", string(entry.Action)),
		),
	)
	defer span.End()

	err := r.next.UpdateSchedule(ctx, id, expected, newEnd, entry)
	recordGuardedOutcome(span, err)
	return err
}

func (r *TracingRepository) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.AppendAudit",
		trace.WithAttributes(
			attribute.String("reservation.id", entry.ReservationID),
			attribute.String("audit.action", string(entry.Action)),
		),
	)
	defer span.End()

	err := r.next.AppendAudit(ctx, entry)
	recordOutcome(span, err)
	return err
}

func (r *TracingRepository) ListAudit(ctx context.Context, reservationID string) ([]domain.AuditEntry, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.ListAudit",
		trace.WithAttributes(attribute.String("reservation.id", reservationID)),
	)
	defer span.End()

	entries, err := r.next.ListAudit(ctx, reservationID)
	recordOutcome(span, err)
	return entries, err
}

func (r *TracingRepository) ListActive(ctx context.Context) ([]domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.ListActive")
	defer span.End()

	reservations, err := r.next.ListActive(ctx)
	recordOutcome(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reservations)))
	}
	return reservations, err
}

func (r *TracingRepository) ListReadyOrLate(ctx context.Context) ([]domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.ListReadyOrLate")
	defer span.End()

	reservations, err := r.next.ListReadyOrLate(ctx)
	recordOutcome(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reservations)))
	}
	return reservations, err
}

func (r *TracingRepository) ListDueForStart(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.ListDueForStart")
	defer span.End()

	reservations, err := r.next.ListDueForStart(ctx, now)
	recordOutcome(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reservations)))
	}
	return reservations, err
}

func (r *TracingRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.ListOverdue")
	defer span.End()

	reservations, err := r.next.ListOverdue(ctx, now)
	recordOutcome(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reservations)))
	}
	return reservations, err
}

func (r *TracingRepository) ListPendingVerification(ctx context.Context) ([]domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.ListPendingVerification")
	defer span.End()

	reservations, err := r.next.ListPendingVerification(ctx)
	recordOutcome(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reservations)))
	}
	return reservations, err
}

func recordOutcome(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// recordGuardedOutcome treats a lost compare-and-set race as a normal
// outcome: the event is recorded for visibility without failing the span.
func recordGuardedOutcome(span trace.Span, err error) {
	if err == nil {
		return
	}
	if domain.KindOf(err) == domain.KindInvalidState {
		span.AddEvent("guard.miss", trace.WithAttributes(attribute.String("error", err.Error())))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
