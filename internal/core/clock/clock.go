// Package clock abstracts the current time so token expiry can be tested
// deterministically.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant. Advance moves it forward.
type Fixed struct {
	Instant time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{Instant: t} }

func (f *Fixed) Now() time.Time { return f.Instant }

func (f *Fixed) Advance(d time.Duration) { f.Instant = f.Instant.Add(d) }
