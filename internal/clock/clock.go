// Package clock provides the time source BYOKEY's request-path engine depends
// on instead of calling time.Now directly, so refresh cooldowns and credential
// expiry checks are deterministic under test.
package clock

import "time"

// Clock is a source of "now", seamed out for tests that need a fixed or
// advancing clock instead of real wall time.
type Clock interface {
	Now() time.Time
}

// System is the production Clock backed by the wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Frozen is a test Clock that always returns a fixed instant until advanced.
type Frozen struct {
	t time.Time
}

// NewFrozen returns a Frozen clock starting at t.
func NewFrozen(t time.Time) *Frozen { return &Frozen{t: t} }

// Now returns the current frozen instant.
func (f *Frozen) Now() time.Time { return f.t }

// Advance moves the frozen clock forward by d.
func (f *Frozen) Advance(d time.Duration) { f.t = f.t.Add(d) }

// Set pins the frozen clock to t.
func (f *Frozen) Set(t time.Time) { f.t = t }
