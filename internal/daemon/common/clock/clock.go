package clock

import "time"

// Clock abstracts time for components that need testable scheduling.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a manually advanced clock for tests.
type MockClock struct {
	currentTime time.Time
}

func (c *MockClock) Now() time.Time { return c.currentTime }

func (c *MockClock) Since(t time.Time) time.Duration { return c.currentTime.Sub(t) }

func (c *MockClock) Advance(d time.Duration) {
	c.currentTime = c.currentTime.Add(d)
}
