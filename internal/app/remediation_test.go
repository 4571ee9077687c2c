package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reserviq/reserviq/internal/domain"
)

// lateFixture freezes the clock past the grace window of a reservation
// scheduled at base.
func lateFixture() fixture {
	return newFixture(base.Add(20 * time.Minute)) // 15m grace + 5m
}

func TestExtendTime_Success(t *testing.T) {
	f := lateFixture()
	r := seed(f, "r-1", domain.StatusConfirmed, base)
	originalEnd := r.EndTime

	got, err := f.svc.ExtendTime(context.Background(), "r-1", "staff-1", 30, "holder stuck in traffic")
	if err != nil {
		t.Fatalf("ExtendTime failed: %v", err)
	}
	if want := originalEnd.Add(30 * time.Minute); !got.EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, want)
	}
	if got.StartTime != r.StartTime {
		t.Errorf("StartTime must not move, got %v", got.StartTime)
	}

	entries, _ := f.repo.ListAudit(context.Background(), "r-1")
	if len(entries) != 1 || entries[0].Action != domain.AuditExtendTime {
		t.Fatalf("audit = %+v, want single extend_time entry", entries)
	}
	if !strings.Contains(entries[0].Note, "holder stuck in traffic") {
		t.Errorf("Note = %q, should carry the staff note", entries[0].Note)
	}
}

func TestExtendTime_InvalidMinutes(t *testing.T) {
	f := lateFixture()
	seed(f, "r-1", domain.StatusConfirmed, base)

	for _, minutes := range []int{0, -15} {
		_, err := f.svc.ExtendTime(context.Background(), "r-1", "staff-1", minutes, "")
		if !errors.Is(err, domain.ErrInvalidDuration) {
			t.Errorf("minutes=%d: expected ErrInvalidDuration, got %v", minutes, err)
		}
	}
}

func TestReduceDuration_Success(t *testing.T) {
	f := lateFixture()
	seed(f, "r-1", domain.StatusConfirmed, base) // 60 minute booking

	got, err := f.svc.ReduceDuration(context.Background(), "r-1", "staff-1", 40, "")
	if err != nil {
		t.Fatalf("ReduceDuration failed: %v", err)
	}
	if want := base.Add(40 * time.Minute); !got.EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, want)
	}
}

func TestReduceDuration_CannotExceedOriginal(t *testing.T) {
	f := lateFixture()
	seed(f, "r-1", domain.StatusConfirmed, base) // 60 minute booking

	_, err := f.svc.ReduceDuration(context.Background(), "r-1", "staff-1", 90, "")
	if !errors.Is(err, domain.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	if !stored.EndTime.Equal(base.Add(time.Hour)) {
		t.Errorf("EndTime = %v, rejected reduction must not write", stored.EndTime)
	}
}

func TestRemediation_NotLateYet(t *testing.T) {
	// Clock inside the grace window.
	f := newFixture(base.Add(10 * time.Minute))
	seed(f, "r-1", domain.StatusConfirmed, base)

	_, err := f.svc.ExtendTime(context.Background(), "r-1", "staff-1", 30, "")
	var graceErr *domain.GraceIneligibleError
	if !errors.As(err, &graceErr) {
		t.Fatalf("expected GraceIneligibleError, got %v", err)
	}
}

func TestRemediation_AlreadyStarted(t *testing.T) {
	f := lateFixture()
	r := seed(f, "r-1", domain.StatusActive, base)
	startedAt := base.Add(5 * time.Minute)
	r.StartedAt = &startedAt
	f.repo.reservations["r-1"] = r

	_, err := f.svc.MarkNoShow(context.Background(), "r-1", "staff-1", "")
	var notRem *domain.NotRemediableError
	if !errors.As(err, &notRem) {
		t.Fatalf("expected NotRemediableError, got %v", err)
	}
	if !notRem.Started {
		t.Error("Started should be true")
	}
}

func TestRemediation_TerminalState(t *testing.T) {
	f := lateFixture()
	seed(f, "r-1", domain.StatusCancelled, base)

	_, err := f.svc.ExtendTime(context.Background(), "r-1", "staff-1", 30, "")
	var notRem *domain.NotRemediableError
	if !errors.As(err, &notRem) {
		t.Fatalf("expected NotRemediableError, got %v", err)
	}
	if notRem.Status != domain.StatusCancelled {
		t.Errorf("Status = %q, want %q", notRem.Status, domain.StatusCancelled)
	}
}

func TestMarkNoShow_ThenStartIsRejected(t *testing.T) {
	f := lateFixture()
	seed(f, "r-1", domain.StatusConfirmed, base)

	r, err := f.svc.MarkNoShow(context.Background(), "r-1", "staff-1", "never arrived")
	if err != nil {
		t.Fatalf("MarkNoShow failed: %v", err)
	}
	if r.Status != domain.StatusNoShow {
		t.Errorf("Status = %q, want %q", r.Status, domain.StatusNoShow)
	}
	if r.NoShowAt == nil {
		t.Error("NoShowAt should be stamped")
	}

	// A staff click racing the no-show replays against the new state.
	_, err = f.svc.StartUsage(context.Background(), "r-1", "staff-2", "")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError after no-show, got %v", err)
	}
}

func TestStartLate_RecordsDecisionOnly(t *testing.T) {
	f := lateFixture()
	seed(f, "r-1", domain.StatusConfirmed, base)

	r, err := f.svc.StartLate(context.Background(), "r-1", "staff-1", "letting them in")
	if err != nil {
		t.Fatalf("StartLate failed: %v", err)
	}
	if r.Status != domain.StatusConfirmed {
		t.Errorf("Status = %q, the decision must not mutate state", r.Status)
	}

	entries, _ := f.repo.ListAudit(context.Background(), "r-1")
	if len(entries) != 1 || entries[0].Action != domain.AuditStartLate {
		t.Fatalf("audit = %+v, want single start_late entry", entries)
	}

	// The actual start is a normal StartUsage with whatever window remains.
	result, err := f.svc.StartUsage(context.Background(), "r-1", "staff-1", "")
	if err != nil {
		t.Fatalf("StartUsage after late approval failed: %v", err)
	}
	if result.Reservation.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", result.Reservation.Status, domain.StatusActive)
	}
}
