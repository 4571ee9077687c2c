package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reserviq/reserviq/internal/domain"
)

// AutoStartUsage scans reservations whose scheduled start has arrived and
// starts each one as the system actor. Safe to run repeatedly and
// concurrently with manual starts: a row lost to another caller counts as a
// skip, not a failure. Each row runs under its own bounded deadline so one
// stuck row cannot stall the batch.
func (s *LifecycleService) AutoStartUsage(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueForStart(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("listing reservations due for start: %w", err)
	}

	started := 0
	for _, r := range due {
		rowCtx, cancel := context.WithTimeout(ctx, s.rowTimeout)
		_, err := s.StartUsage(rowCtx, r.ID, domain.SystemActor, "auto-started")
		cancel()

		if err == nil {
			started++
			continue
		}
		switch domain.KindOf(err) {
		case domain.KindInvalidState, domain.KindGraceIneligible, domain.KindPaymentExpired, domain.KindNotFound:
			// Another caller won the row, or its state moved since the scan.
			continue
		default:
			slog.WarnContext(ctx, "auto-start skipped, will retry next cycle",
				"reservation_id", r.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "auto-start sweep finished",
		"candidates", len(due), "started", started)
	return started, nil
}

// AutoCompleteUsage scans active reservations whose end time has passed and
// completes each one as the system actor. Same idempotent-race behavior as
// AutoStartUsage.
func (s *LifecycleService) AutoCompleteUsage(ctx context.Context) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("listing overdue reservations: %w", err)
	}

	completed := 0
	for _, r := range overdue {
		rowCtx, cancel := context.WithTimeout(ctx, s.rowTimeout)
		_, err := s.CompleteUsage(rowCtx, r.ID, domain.SystemActor, "auto-completed (expired)")
		cancel()

		if err == nil {
			completed++
			continue
		}
		switch domain.KindOf(err) {
		case domain.KindInvalidState, domain.KindNotFound:
			continue
		default:
			slog.WarnContext(ctx, "auto-complete skipped, will retry next cycle",
				"reservation_id", r.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "auto-complete sweep finished",
		"candidates", len(overdue), "completed", completed)
	return completed, nil
}
