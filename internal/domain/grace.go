package domain

import "time"

// DefaultGracePeriod is the window after the scheduled start during which a
// holder may still check in without being classified late.
const DefaultGracePeriod = 15 * time.Minute

// GracePolicy evaluates start eligibility and lateness for a reservation.
// It is pure: all decisions are functions of the reservation, the policy
// window, and an explicit clock reading.
type GracePolicy struct {
	Window time.Duration
}

// NewGracePolicy returns a policy with the given window, falling back to
// DefaultGracePeriod when the window is not positive.
func NewGracePolicy(window time.Duration) GracePolicy {
	if window <= 0 {
		window = DefaultGracePeriod
	}
	return GracePolicy{Window: window}
}

// EligibleToStart reports whether usage may start now: the scheduled start
// has arrived, the payment gate is not expired, and the reservation is in a
// startable (confirmed or ready) state.
func (p GracePolicy) EligibleToStart(r Reservation, now time.Time) bool {
	if r.Status != StatusConfirmed && r.Status != StatusReady {
		return false
	}
	if r.PaymentStatus == PaymentExpired {
		return false
	}
	return !now.Before(r.StartTime)
}

// IsLate reports whether the reservation has outlived its grace window
// without usage being started.
func (p GracePolicy) IsLate(r Reservation, now time.Time) bool {
	if r.Started() {
		return false
	}
	return now.After(r.StartTime.Add(p.Window))
}

// TimeUntilGraceExpiry returns how long remains until the grace window
// closes, clamped at zero. Diagnostic only; transitions never depend on it.
func (p GracePolicy) TimeUntilGraceExpiry(r Reservation, now time.Time) time.Duration {
	remaining := r.StartTime.Add(p.Window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
