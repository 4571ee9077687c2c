package app

import (
	"context"
	"fmt"
	"time"

	"github.com/reserviq/reserviq/internal/domain"
)

// Late-user remediation: staff-directed corrective actions for a reservation
// that sat out its grace window without starting. Every action re-validates
// the remediable state and then relies on the store's guarded write, so a
// concurrent auto-start or manual start invalidates the remediation instead
// of being silently overwritten.

// remediable loads the reservation and checks it is still correctable:
// confirmed or ready, usage not started, and past its grace window.
func (s *LifecycleService) remediable(ctx context.Context, id string) (domain.Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	if r.Started() {
		return domain.Reservation{}, &domain.NotRemediableError{ID: r.ID, Status: r.Status, Started: true}
	}
	if r.Status != domain.StatusConfirmed && r.Status != domain.StatusReady {
		return domain.Reservation{}, &domain.NotRemediableError{ID: r.ID, Status: r.Status}
	}
	if !s.grace.IsLate(r, s.clock.Now()) {
		return domain.Reservation{}, &domain.GraceIneligibleError{
			Reason: "reservation is still within its grace window",
		}
	}

	return r, nil
}

// ExtendTime pushes the reservation's end out by the given minutes,
// compensating a late arrival without forcing a restart.
func (s *LifecycleService) ExtendTime(ctx context.Context, id, actor string, minutes int, note string) (domain.Reservation, error) {
	if minutes <= 0 {
		return domain.Reservation{}, fmt.Errorf("extension of %d minutes: %w", minutes, domain.ErrInvalidDuration)
	}

	r, err := s.remediable(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	now := s.clock.Now()
	newEnd := r.EndTime.Add(time.Duration(minutes) * time.Minute)

	entry := domain.AuditEntry{
		ReservationID: r.ID,
		Actor:         actor,
		Action:        domain.AuditExtendTime,
		Note:          remediationNote(fmt.Sprintf("extended by %d minutes, new end %s", minutes, newEnd.Format(time.RFC3339)), note),
		CreatedAt:     now,
	}

	if err := s.repo.UpdateSchedule(ctx, r.ID, r.Status, newEnd, entry); err != nil {
		return domain.Reservation{}, err
	}

	r.EndTime = newEnd
	r.UpdatedAt = now
	return r, nil
}

// ReduceDuration recomputes the end as start plus the given duration. The
// new end is clamped to the original booking: shortening only, lengthening
// goes through ExtendTime where the intent is explicit.
func (s *LifecycleService) ReduceDuration(ctx context.Context, id, actor string, newDurationMinutes int, note string) (domain.Reservation, error) {
	if newDurationMinutes <= 0 {
		return domain.Reservation{}, fmt.Errorf("duration of %d minutes: %w", newDurationMinutes, domain.ErrInvalidDuration)
	}

	r, err := s.remediable(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	now := s.clock.Now()
	newEnd := r.StartTime.Add(time.Duration(newDurationMinutes) * time.Minute)
	if newEnd.After(r.EndTime) {
		return domain.Reservation{}, fmt.Errorf("new end %s exceeds the original booking end %s: %w",
			newEnd.Format(time.RFC3339), r.EndTime.Format(time.RFC3339), domain.ErrInvalidDuration)
	}

	entry := domain.AuditEntry{
		ReservationID: r.ID,
		Actor:         actor,
		Action:        domain.AuditReduceDuration,
		Note:          remediationNote(fmt.Sprintf("reduced to %d minutes, new end %s", newDurationMinutes, newEnd.Format(time.RFC3339)), note),
		CreatedAt:     now,
	}

	if err := s.repo.UpdateSchedule(ctx, r.ID, r.Status, newEnd, entry); err != nil {
		return domain.Reservation{}, err
	}

	r.EndTime = newEnd
	r.UpdatedAt = now
	return r, nil
}

// MarkNoShow closes out a late reservation without recording any usage.
func (s *LifecycleService) MarkNoShow(ctx context.Context, id, actor, note string) (domain.Reservation, error) {
	r, err := s.remediable(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	return s.transition(ctx, r, domain.EventMarkNoShow, actor, note, domain.AuditMarkNoShow,
		func(r *domain.Reservation, now time.Time) { r.NoShowAt = &now })
}

// StartLate records the staff decision to let a late arrival in. It mutates
// nothing: the decision is audited here, the execution is a normal
// StartUsage call with whatever window remains.
func (s *LifecycleService) StartLate(ctx context.Context, id, actor, note string) (domain.Reservation, error) {
	r, err := s.remediable(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	entry := domain.AuditEntry{
		ReservationID: r.ID,
		Actor:         actor,
		Action:        domain.AuditStartLate,
		Note:          remediationNote("approved late start", note),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.AppendAudit(ctx, entry); err != nil {
		return domain.Reservation{}, fmt.Errorf("recording late-start decision: %w", err)
	}

	return r, nil
}

func remediationNote(summary, note string) string {
	if note == "" {
		return summary
	}
	return summary + ": " + note
}
