// Package coreclock wraps time reads behind an injectable interface so that
// discovery windows, lock TTLs, deadlines, and rate windows can be driven
// deterministically in tests instead of scattering time.Now() through the
// core components.
package coreclock

import (
	"time"

	"github.com/andres-erbsen/clock"
)

// Clock is the time source every component takes as a constructor
// dependency instead of calling time.Now() directly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
	NewTicker(d time.Duration) *clock.Ticker
	NewTimer(d time.Duration) *clock.Timer
}

// Real returns the wall-clock Clock used in production.
func Real() Clock {
	return realClock{c: clock.New()}
}

type realClock struct {
	c *clock.Clock
}

func (r realClock) Now() time.Time                        { return r.c.Now() }
func (r realClock) After(d time.Duration) <-chan time.Time { return r.c.After(d) }
func (r realClock) Sleep(d time.Duration)                  { r.c.Sleep(d) }
func (r realClock) NewTicker(d time.Duration) *clock.Ticker { return r.c.NewTicker(d) }
func (r realClock) NewTimer(d time.Duration) *clock.Timer   { return r.c.NewTimer(d) }

// Mock returns a Clock whose time only moves when Set or Advance is called,
// for deterministic tests of deadlines, TTLs, and dedup windows.
func Mock(start time.Time) *MockClock {
	m := clock.NewMock()
	if !start.IsZero() {
		m.Set(start)
	}
	return &MockClock{c: m}
}

// MockClock is a test double implementing Clock plus explicit time control.
type MockClock struct {
	c *clock.Mock
}

func (m *MockClock) Now() time.Time                        { return m.c.Now() }
func (m *MockClock) After(d time.Duration) <-chan time.Time { return m.c.After(d) }
func (m *MockClock) Sleep(d time.Duration)                  { m.c.Sleep(d) }
func (m *MockClock) NewTicker(d time.Duration) *clock.Ticker { return m.c.NewTicker(d) }
func (m *MockClock) NewTimer(d time.Duration) *clock.Timer   { return m.c.NewTimer(d) }

// Set pins the mock clock to t.
func (m *MockClock) Set(t time.Time) { m.c.Set(t) }

// Advance moves the mock clock forward by d, firing any timers/tickers due.
func (m *MockClock) Advance(d time.Duration) { m.c.Add(d) }
