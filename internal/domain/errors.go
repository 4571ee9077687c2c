package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the machine-readable classification surfaced to callers.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindInvalidState     ErrorKind = "invalid_state"
	KindGraceIneligible  ErrorKind = "grace_period_ineligible"
	KindPaymentExpired   ErrorKind = "payment_expired"
	KindStoreUnavailable ErrorKind = "store_unavailable"
	KindUnknown          ErrorKind = "unknown"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrInvalidSchedule rejects intake of a reservation whose end does not
	// follow its start.
	ErrInvalidSchedule = errors.New("end_time must be after start_time")

	// ErrInvalidDuration rejects remediation inputs that would produce a
	// non-positive window or silently lengthen the booking.
	ErrInvalidDuration = errors.New("invalid duration for remediation")
)

// TransitionError is returned when a state transition is not allowed from
// the reservation's current status.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// StaleStatusError is returned by guarded store writes when the row's status
// no longer matches what the caller observed. A concurrent actor won the
// critical section; callers treat this as a benign no-op.
type StaleStatusError struct {
	ID       string
	Expected Status
	Actual   Status
}

func (e *StaleStatusError) Error() string {
	return fmt.Sprintf("reservation %s is %q, expected %q", e.ID, e.Actual, e.Expected)
}

// NotRemediableError is returned when a late-user remediation targets a
// reservation that is no longer in a remediable state: it is terminal, or
// usage has already started.
type NotRemediableError struct {
	ID      string
	Status  Status
	Started bool
}

func (e *NotRemediableError) Error() string {
	if e.Started {
		return fmt.Sprintf("reservation %s has already started usage", e.ID)
	}
	return fmt.Sprintf("reservation %s is %q and cannot be remediated", e.ID, e.Status)
}

// GraceIneligibleError is returned when a start is attempted before the
// reservation's eligibility window opens, or when a remediation is attempted
// on a reservation that is not yet late.
type GraceIneligibleError struct {
	Reason         string
	TimeUntilStart time.Duration // zero when not applicable
}

func (e *GraceIneligibleError) Error() string {
	if e.TimeUntilStart > 0 {
		return fmt.Sprintf("%s (starts in %s)", e.Reason, e.TimeUntilStart)
	}
	return e.Reason
}

// PaymentExpiredError blocks a start because the payment gate reports expired.
type PaymentExpiredError struct {
	ID string
}

func (e *PaymentExpiredError) Error() string {
	return fmt.Sprintf("payment for reservation %s has expired", e.ID)
}

// StoreUnavailableError marks a transient store failure. Sweeps log and
// retry on the next cycle; manual callers surface a retryable error.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("reservation store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// KindOf classifies an error into the caller-facing taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReservationNotFound):
		return KindNotFound
	}

	var (
		transition  *TransitionError
		stale       *StaleStatusError
		remediation *NotRemediableError
		grace       *GraceIneligibleError
		payment     *PaymentExpiredError
		store       *StoreUnavailableError
	)
	switch {
	case errors.As(err, &transition), errors.As(err, &stale), errors.As(err, &remediation),
		errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrInvalidSchedule):
		return KindInvalidState
	case errors.As(err, &grace):
		return KindGraceIneligible
	case errors.As(err, &payment):
		return KindPaymentExpired
	case errors.As(err, &store):
		return KindStoreUnavailable
	}
	return KindUnknown
}
