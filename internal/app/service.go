package app

import (
	"context"
	"fmt"
	"time"

	"github.com/reserviq/reserviq/internal/clock"
	"github.com/reserviq/reserviq/internal/domain"
)

const defaultRowTimeout = 5 * time.Second

// LifecycleService is the usage lifecycle manager. It owns every state
// transition of a reservation and is the single serialization point per
// reservation id: all mutations go through status-guarded store writes, so
// concurrent callers (staff clicks racing the sweeps) resolve to exactly one
// winner and a benign invalid-state result for the loser.
type LifecycleService struct {
	repo       domain.ReservationRepository
	publisher  domain.EventPublisher
	validator  domain.TransitionValidator
	payments   domain.PaymentGate
	clock      clock.Clock
	grace      domain.GracePolicy
	rowTimeout time.Duration
}

// Option configures a LifecycleService.
type Option func(*LifecycleService)

// WithGracePeriod overrides the default grace window.
func WithGracePeriod(d time.Duration) Option {
	return func(s *LifecycleService) {
		s.grace = domain.NewGracePolicy(d)
	}
}

// WithRowTimeout bounds how long a sweep spends on a single reservation
// before skipping it until the next cycle.
func WithRowTimeout(d time.Duration) Option {
	return func(s *LifecycleService) {
		if d > 0 {
			s.rowTimeout = d
		}
	}
}

// NewLifecycleService creates the manager with the given adapters.
func NewLifecycleService(
	repo domain.ReservationRepository,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	payments domain.PaymentGate,
	clk clock.Clock,
	opts ...Option,
) *LifecycleService {
	s := &LifecycleService{
		repo:       repo,
		publisher:  publisher,
		validator:  validator,
		payments:   payments,
		clock:      clk,
		grace:      domain.NewGracePolicy(domain.DefaultGracePeriod),
		rowTimeout: defaultRowTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GracePolicy exposes the configured policy for read-time classification.
func (s *LifecycleService) GracePolicy() domain.GracePolicy {
	return s.grace
}

// CreateInput holds the intake fields for a new reservation.
type CreateInput struct {
	FacilityID    string
	HolderID      string
	StartTime     time.Time
	EndTime       time.Time
	Status        domain.Status        // pending or confirmed; defaults to pending
	PaymentStatus domain.PaymentStatus // defaults to pending
}

// Create persists a new reservation. Intake is a thin collaborator surface:
// it validates the schedule and seeds the initial state, nothing more.
func (s *LifecycleService) Create(ctx context.Context, in CreateInput) (domain.Reservation, error) {
	if !in.EndTime.After(in.StartTime) {
		return domain.Reservation{}, domain.ErrInvalidSchedule
	}

	id, err := generateID()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("generating reservation id: %w", err)
	}

	r := domain.NewReservation(id, in.FacilityID, in.HolderID, in.StartTime, in.EndTime)
	if in.Status == domain.StatusConfirmed {
		r.Status = domain.StatusConfirmed
	}
	if in.PaymentStatus != "" {
		r.PaymentStatus = in.PaymentStatus
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return domain.Reservation{}, fmt.Errorf("creating reservation: %w", err)
	}

	return r, nil
}

// GetByID returns a reservation by its unique identifier.
func (s *LifecycleService) GetByID(ctx context.Context, id string) (domain.Reservation, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns reservations matching the given filter.
func (s *LifecycleService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Reservation, error) {
	return s.repo.List(ctx, filter)
}

// GetAudit returns the structured audit trail for a reservation.
func (s *LifecycleService) GetAudit(ctx context.Context, id string) ([]domain.AuditEntry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListAudit(ctx, id)
}

// StartResult reports a successful start plus the payment flag the caller
// must surface when payment is still pending.
type StartResult struct {
	Reservation    domain.Reservation
	PaymentPending bool
}

// StartUsage records the actual begin of occupancy. The reservation must be
// startable (confirmed or ready), its scheduled start must have arrived, and
// the payment gate must not report expired. A pending payment does not block
// the start; the result carries the flag instead.
func (s *LifecycleService) StartUsage(ctx context.Context, id, actor, note string) (StartResult, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return StartResult{}, err
	}

	paymentStatus, err := s.payments.PaymentStatus(ctx, id)
	if err != nil {
		return StartResult{}, fmt.Errorf("checking payment gate: %w", err)
	}

	// The gate's reading feeds the eligibility decision only; it is never
	// written back, the payment sweep owns that column.
	gated := r
	gated.PaymentStatus = paymentStatus

	now := s.clock.Now()
	if !s.grace.EligibleToStart(gated, now) {
		return StartResult{}, startRefusal(r, paymentStatus, now)
	}

	updated, err := s.transition(ctx, r, domain.EventStart, actor, note, domain.AuditStart,
		func(r *domain.Reservation, now time.Time) { r.StartedAt = &now })
	if err != nil {
		return StartResult{}, err
	}

	return StartResult{
		Reservation:    updated,
		PaymentPending: paymentStatus == domain.PaymentPending,
	}, nil
}

// startRefusal maps an EligibleToStart rejection to the specific domain
// error for its cause.
func startRefusal(r domain.Reservation, payment domain.PaymentStatus, now time.Time) error {
	switch {
	case r.Status != domain.StatusConfirmed && r.Status != domain.StatusReady:
		return &domain.TransitionError{Event: domain.EventStart, Current: r.Status}
	case payment == domain.PaymentExpired:
		return &domain.PaymentExpiredError{ID: r.ID}
	default:
		return &domain.GraceIneligibleError{
			Reason:         "reservation has not reached its scheduled start",
			TimeUntilStart: r.StartTime.Sub(now),
		}
	}
}

// CompleteUsage closes an active session. This is the terminal write for the
// usage window; completed reservations admit no further status mutation
// besides archiving.
func (s *LifecycleService) CompleteUsage(ctx context.Context, id, actor, note string) (domain.Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	return s.transition(ctx, r, domain.EventComplete, actor, note, domain.AuditComplete,
		func(r *domain.Reservation, now time.Time) { r.CompletedAt = &now })
}

// VerifyUsage records a staff acknowledgement of a completed session. It
// changes no invariant-bearing field; calling it twice records two audit
// entries and nothing else.
func (s *LifecycleService) VerifyUsage(ctx context.Context, id, actor, note string) (domain.Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if r.Status != domain.StatusCompleted {
		return domain.Reservation{}, &domain.TransitionError{Event: domain.EventVerify, Current: r.Status}
	}

	entry := domain.AuditEntry{
		ReservationID: r.ID,
		Actor:         actor,
		Action:        domain.AuditVerify,
		Note:          note,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.AppendAudit(ctx, entry); err != nil {
		return domain.Reservation{}, fmt.Errorf("recording verification: %w", err)
	}

	if err := s.publisher.Publish(ctx, domain.EventVerify, r); err != nil {
		return domain.Reservation{}, fmt.Errorf("publishing event %q: %w", domain.EventVerify, err)
	}

	return r, nil
}

// Cancel voids a reservation that has not started usage.
func (s *LifecycleService) Cancel(ctx context.Context, id, actor, note string) (domain.Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	return s.transition(ctx, r, domain.EventCancel, actor, note, domain.AuditCancel,
		func(r *domain.Reservation, now time.Time) { r.CancelledAt = &now })
}

// Archive retires a completed reservation from the working set.
func (s *LifecycleService) Archive(ctx context.Context, id, actor, note string) (domain.Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	return s.transition(ctx, r, domain.EventArchive, actor, note, domain.AuditArchive,
		func(r *domain.Reservation, now time.Time) { r.ArchivedAt = &now })
}

// GetCurrentUsage returns active reservations, oldest started first, for
// timer display.
func (s *LifecycleService) GetCurrentUsage(ctx context.Context) ([]domain.Reservation, error) {
	return s.repo.ListActive(ctx)
}

// ReadyUsage pairs an upcoming reservation with its read-time late
// classification. Lateness is never stored; it is recomputed per read.
type ReadyUsage struct {
	Reservation    domain.Reservation
	Late           bool
	GraceRemaining time.Duration
}

// GetReadyUsage returns confirmed/ready reservations ordered by scheduled
// start, classifying each as late when its grace window has lapsed.
func (s *LifecycleService) GetReadyUsage(ctx context.Context) ([]ReadyUsage, error) {
	reservations, err := s.repo.ListReadyOrLate(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]ReadyUsage, len(reservations))
	for i, r := range reservations {
		out[i] = ReadyUsage{
			Reservation:    r,
			Late:           s.grace.IsLate(r, now),
			GraceRemaining: s.grace.TimeUntilGraceExpiry(r, now),
		}
	}
	return out, nil
}

// GetPendingVerifications returns completed reservations that no staff
// member has verified yet.
func (s *LifecycleService) GetPendingVerifications(ctx context.Context) ([]domain.Reservation, error) {
	return s.repo.ListPendingVerification(ctx)
}

// transition applies a lifecycle event under the per-reservation critical
// section: validate against the FSM, stamp the matching audit timestamp, and
// issue the status-guarded write. A concurrent winner surfaces as a
// StaleStatusError from the store.
func (s *LifecycleService) transition(
	ctx context.Context,
	r domain.Reservation,
	event domain.Event,
	actor, note string,
	action domain.AuditAction,
	stamp func(*domain.Reservation, time.Time),
) (domain.Reservation, error) {
	newStatus, err := s.validator.Apply(ctx, r.Status, event)
	if err != nil {
		return domain.Reservation{}, err
	}

	now := s.clock.Now()
	expected := r.Status
	r.Status = newStatus
	r.UpdatedAt = now
	stamp(&r, now)

	entry := domain.AuditEntry{
		ReservationID: r.ID,
		Actor:         actor,
		Action:        action,
		Note:          note,
		CreatedAt:     now,
	}

	if err := s.repo.UpdateStatusAndAudit(ctx, expected, r, entry); err != nil {
		return domain.Reservation{}, err
	}

	if err := s.publisher.Publish(ctx, event, r); err != nil {
		return domain.Reservation{}, fmt.Errorf("publishing event %q: %w", event, err)
	}

	return r, nil
}
