// Package kclock is the kernel's Clock collaborator (spec §6): a single
// uptime_ms() source used by reassembly expiry and DNS deadlines. Kept as an interface so tests can supply a
// fake clock instead of waiting on wall time.
package kclock

import "time"

// Clock returns milliseconds since some fixed epoch (kernel boot, in a
// real freestanding build; process start here).
type Clock interface {
	UptimeMS() uint64
}

type systemClock struct{ start time.Time }

// System returns a Clock backed by the host monotonic clock, zeroed at
// the moment it is constructed (i.e. "kernel boot").
func System() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) UptimeMS() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// Fake is a deterministic Clock for tests: UptimeMS returns the last value
// set with Advance or Set.
type Fake struct {
	now uint64
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) UptimeMS() uint64 { return f.now }

func (f *Fake) Advance(ms uint64) { f.now += ms }

func (f *Fake) Set(ms uint64) { f.now = ms }
