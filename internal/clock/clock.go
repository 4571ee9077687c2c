// Package clock injects time into the lifecycle manager so grace and sweep
// logic can be tested against fixed instants. All clocks report UTC.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// NewSystem returns a clock backed by time.Now.
func NewSystem() Clock {
	return Func(func() time.Time { return time.Now().UTC() })
}

// NewFixed returns a clock frozen at the given instant.
func NewFixed(t time.Time) Clock {
	frozen := t.UTC()
	return Func(func() time.Time { return frozen })
}
