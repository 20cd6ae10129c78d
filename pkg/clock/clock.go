// Package clock abstracts ledger time. The engine never reads the wall clock
// directly; period and stage logic receive "now" through this interface so
// tests can advance time deterministically.
package clock

import "time"

// Clock supplies the current ledger time, monotonic non-decreasing.
type Clock interface {
	Now() time.Time
}

// System reads the host clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	current time.Time
}

// NewFake starts a fake clock at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

func (f *Fake) Now() time.Time {
	return f.current
}

// Advance moves the clock forward. Negative durations are ignored to keep
// the monotonic contract.
func (f *Fake) Advance(d time.Duration) {
	if d > 0 {
		f.current = f.current.Add(d)
	}
}

// Set jumps to a later instant; earlier instants are ignored.
func (f *Fake) Set(t time.Time) {
	if t.After(f.current) {
		f.current = t
	}
}
