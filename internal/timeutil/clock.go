// Package timeutil holds the wall clock used for run bookkeeping and
// relative query ranges, and the second-precision stamp shared by evidence
// ids and export filenames. Frame timestamps, not the clock, drive tracking.
package timeutil

import (
	"sync"
	"time"
)

// StampLayout renders a second-precision time as 20060102_150405.
const StampLayout = "20060102_150405"

// Stamp formats t with StampLayout in t's own location.
func Stamp(t time.Time) string { return t.Format(StampLayout) }

// ParseStamp parses a StampLayout string as UTC.
func ParseStamp(s string) (time.Time, error) {
	return time.ParseInLocation(StampLayout, s, time.UTC)
}

// FloorSecond drops the sub-second part of t and moves it to UTC.
func FloorSecond(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

// Clock reports the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock is the process clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// MockClock is a manually driven clock for tests. The zero value reads as
// the zero time.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock returns a clock stopped at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps the clock to t, backwards included.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *MockClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
