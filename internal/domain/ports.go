package domain

import (
	"context"
	"time"
)

// ReservationRepository defines the persistence contract for reservations.
// Guarded methods take the status the caller last observed and must fail
// with StaleStatusError if the row no longer matches, implementing the
// per-reservation critical section via optimistic concurrency.
type ReservationRepository interface {
	Create(ctx context.Context, r Reservation) error
	GetByID(ctx context.Context, id string) (Reservation, error)
	List(ctx context.Context, filter ListFilter) ([]Reservation, error)

	// UpdateStatusAndAudit writes the reservation's new status and usage
	// timestamps and appends the audit entry in one transaction, guarded
	// by the expected current status.
	UpdateStatusAndAudit(ctx context.Context, expected Status, r Reservation, entry AuditEntry) error

	// UpdateSchedule rewrites end_time for a reservation that has not yet
	// started usage, guarded by the expected status and started_at IS NULL.
	UpdateSchedule(ctx context.Context, id string, expected Status, newEnd time.Time, entry AuditEntry) error

	// AppendAudit records an audit entry without touching the reservation row.
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, reservationID string) ([]AuditEntry, error)

	// ListActive returns active reservations ordered by started_at ascending.
	ListActive(ctx context.Context) ([]Reservation, error)
	// ListReadyOrLate returns confirmed/ready reservations ordered by
	// start_time ascending; lateness is classified at read time by the caller.
	ListReadyOrLate(ctx context.Context) ([]Reservation, error)
	// ListDueForStart returns confirmed/ready reservations whose start_time
	// has arrived and whose payment gate is not expired.
	ListDueForStart(ctx context.Context, now time.Time) ([]Reservation, error)
	// ListOverdue returns active reservations whose end_time has passed.
	ListOverdue(ctx context.Context, now time.Time) ([]Reservation, error)
	// ListPendingVerification returns completed reservations lacking a
	// verification audit entry.
	ListPendingVerification(ctx context.Context) ([]Reservation, error)
}

// ListFilter holds optional criteria for listing reservations.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// TransitionValidator checks whether an event is legal from the current
// status and resolves the destination status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}

// EventPublisher defines the contract for emitting lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, r Reservation) error
}

// PaymentGate exposes the payment collaborator's verdict for a reservation.
// A separate sweep owned by that collaborator moves payments to expired;
// this side only ever reads.
type PaymentGate interface {
	PaymentStatus(ctx context.Context, reservationID string) (PaymentStatus, error)
}
