package clock

import (
	"sync"
	"time"
)

// Clock provides time-related functions that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using actual system time
type RealClock struct{}

// Now returns the current system time
func (RealClock) Now() time.Time {
	return time.Now()
}

// Manual is a Clock that only moves when told to
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock set to t
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the manual time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
