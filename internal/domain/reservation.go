package domain

import "time"

// Status represents the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusReady     Status = "ready"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusArchived  Status = "archived"
)

// Statuses lists every lifecycle state, for exhaustiveness checks.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusReady, StatusActive,
	StatusCompleted, StatusNoShow, StatusCancelled, StatusExpired, StatusArchived,
}

// Terminal reports whether the usage lifecycle is over in this status.
// Completed reservations still permit archival as housekeeping; every
// other terminal status is absorbing.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNoShow, StatusCancelled, StatusExpired, StatusArchived:
		return true
	}
	return false
}

// PaymentStatus is the state of the payment gate for a reservation.
// It is owned by the payment collaborator; the lifecycle manager only reads it.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentExpired PaymentStatus = "expired"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventStart      Event = "start"
	EventComplete   Event = "complete"
	EventMarkNoShow Event = "mark_no_show"
	EventCancel     Event = "cancel"
	EventArchive    Event = "archive"
	EventExpire     Event = "expire"

	// EventVerify is publish-only: verification records an audit entry
	// without changing status, so it has no row in Transitions.
	EventVerify Event = "verify"
)

// Transition defines a valid state change: an event moves a reservation from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the reservation lifecycle.
// This is domain knowledge consumed by the FSM adapter. Terminal states have
// no outgoing edges.
var Transitions = []Transition{
	{Event: EventStart, Src: StatusConfirmed, Dst: StatusActive},
	{Event: EventStart, Src: StatusReady, Dst: StatusActive},
	{Event: EventComplete, Src: StatusActive, Dst: StatusCompleted},
	{Event: EventMarkNoShow, Src: StatusConfirmed, Dst: StatusNoShow},
	{Event: EventMarkNoShow, Src: StatusReady, Dst: StatusNoShow},
	{Event: EventCancel, Src: StatusPending, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusConfirmed, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusReady, Dst: StatusCancelled},
	{Event: EventArchive, Src: StatusCompleted, Dst: StatusArchived},
	{Event: EventExpire, Src: StatusPending, Dst: StatusExpired},
	{Event: EventExpire, Src: StatusConfirmed, Dst: StatusExpired},
	{Event: EventExpire, Src: StatusReady, Dst: StatusExpired},
}

// SystemActor is the actor id recorded for transitions performed by the sweeps.
const SystemActor = "system"

// Reservation is the core domain entity: a time-bounded facility booking
// whose actual occupancy is tracked through the usage lifecycle.
type Reservation struct {
	ID            string
	FacilityID    string
	HolderID      string
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	PaymentStatus PaymentStatus

	// Usage audit timestamps, each set exactly once on the matching transition.
	StartedAt   *time.Time
	CompletedAt *time.Time
	NoShowAt    *time.Time
	CancelledAt *time.Time
	ArchivedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReservation creates a reservation in the initial "pending" state with
// payment not yet settled. Schedule validity (end after start) is enforced
// at the intake surface.
func NewReservation(id, facilityID, holderID string, start, end time.Time) Reservation {
	now := time.Now().UTC()
	return Reservation{
		ID:            id,
		FacilityID:    facilityID,
		HolderID:      holderID,
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Started reports whether usage has been recorded as started.
func (r Reservation) Started() bool {
	return r.StartedAt != nil
}

// ElapsedAt returns the running usage duration at the given instant,
// zero if usage has not started.
func (r Reservation) ElapsedAt(now time.Time) time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	d := now.Sub(*r.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// FinalDuration returns the closed usage window once the session completed.
// The second return is false while the session is still open.
func (r Reservation) FinalDuration() (time.Duration, bool) {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0, false
	}
	return r.CompletedAt.Sub(*r.StartedAt), true
}

// AuditAction identifies what a staff member or the system did to a reservation.
type AuditAction string

const (
	AuditStart          AuditAction = "start"
	AuditComplete       AuditAction = "complete"
	AuditVerify         AuditAction = "verify"
	AuditMarkNoShow     AuditAction = "mark_no_show"
	AuditCancel         AuditAction = "cancel"
	AuditArchive        AuditAction = "archive"
	AuditExtendTime     AuditAction = "extend_time"
	AuditReduceDuration AuditAction = "reduce_duration"
	AuditStartLate      AuditAction = "start_late"
)

// AuditEntry is one structured record in a reservation's audit trail,
// appended atomically with the state change it describes.
type AuditEntry struct {
	ID            int64
	ReservationID string
	Actor         string
	Action        AuditAction
	Note          string
	CreatedAt     time.Time
}
