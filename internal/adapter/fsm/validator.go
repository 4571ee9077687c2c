package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/reserviq/reserviq/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// events is domain.Transitions in looplab/fsm EventDesc form. Every
// lifecycle event resolves to a single destination status, so the table
// collapses to one EventDesc per event carrying all its source states
// (e.g. "start" from confirmed or ready lands in active).
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	var order []domain.Event
	srcs := make(map[domain.Event][]string)
	dst := make(map[domain.Event]string)

	for _, t := range domain.Transitions {
		if _, seen := srcs[t.Event]; !seen {
			order = append(order, t.Event)
		}
		srcs[t.Event] = append(srcs[t.Event], string(t.Src))
		dst[t.Event] = string(t.Dst)
	}

	out := make([]loopfsm.EventDesc, len(order))
	for i, e := range order {
		out[i] = loopfsm.EventDesc{Name: string(e), Src: srcs[e], Dst: dst[e]}
	}
	return out
}

// Validator implements domain.TransitionValidator on top of looplab/fsm.
// looplab/fsm tracks current state internally, so Apply builds a throwaway
// machine seeded with the reservation's status rather than sharing one.
type Validator struct{}

// New creates an FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Apply fires the event against the reservation's current status and
// returns the destination. Illegal events, including anything fired at a
// terminal status, come back as a domain.TransitionError.
func (v *Validator) Apply(ctx context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{Event: event, Current: current}
		}
		return "", err
	}

	return domain.Status(machine.Current()), nil
}
