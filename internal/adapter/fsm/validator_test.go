package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/reserviq/reserviq/internal/adapter/fsm"
	"github.com/reserviq/reserviq/internal/domain"
)

func TestValidator_AllTransitions(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, tr := range domain.Transitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Event)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Event, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Event, dst, tr.Dst)
		}
	}
}

func TestValidator_InvalidTransition(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	// No-show reservations cannot be started.
	_, err := v.Apply(ctx, domain.StatusNoShow, domain.EventStart)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Event != domain.EventStart {
		t.Errorf("event = %q, want %q", trErr.Event, domain.EventStart)
	}
	if trErr.Current != domain.StatusNoShow {
		t.Errorf("current = %q, want %q", trErr.Current, domain.StatusNoShow)
	}
}

func TestValidator_TerminalStatesRejectEverything(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	events := []domain.Event{
		domain.EventStart, domain.EventComplete, domain.EventMarkNoShow,
		domain.EventCancel, domain.EventArchive, domain.EventExpire,
	}

	for _, s := range domain.Statuses {
		if !s.Terminal() || s == domain.StatusCompleted {
			// Completed is terminal for usage but still archivable.
			continue
		}
		for _, e := range events {
			if _, err := v.Apply(ctx, s, e); err == nil {
				t.Errorf("Apply(%q, %q) should fail from a terminal state", s, e)
			}
		}
	}
}

func TestValidator_FullLifecycle(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	steps := []struct {
		from  domain.Status
		event domain.Event
		want  domain.Status
	}{
		{domain.StatusConfirmed, domain.EventStart, domain.StatusActive},
		{domain.StatusActive, domain.EventComplete, domain.StatusCompleted},
		{domain.StatusCompleted, domain.EventArchive, domain.StatusArchived},
	}

	for _, step := range steps {
		got, err := v.Apply(ctx, step.from, step.event)
		if err != nil {
			t.Fatalf("Apply(%q, %q) failed: %v", step.from, step.event, err)
		}
		if got != step.want {
			t.Fatalf("Apply(%q, %q) = %q, want %q", step.from, step.event, got, step.want)
		}
	}
}

func TestValidator_DoubleStart(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	status, err := v.Apply(ctx, domain.StatusReady, domain.EventStart)
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	// The winner moved to active; the loser's event replays against the new
	// state and must be rejected.
	_, err = v.Apply(ctx, status, domain.EventStart)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError on double start, got %v", err)
	}
}
