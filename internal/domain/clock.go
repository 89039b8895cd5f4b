package domain

import (
	"math"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	Instant time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.Instant
}

const (
	// TicksPerMillisecond is the number of 100ns ticks in one millisecond.
	TicksPerMillisecond int64 = 10_000

	// TicksPerSecond is the number of 100ns ticks in one second.
	TicksPerSecond = 1000 * TicksPerMillisecond

	// MaxTicks is the greatest representable instant.
	MaxTicks int64 = math.MaxInt64
)

// TicksFromTime converts t to 100-nanosecond ticks since the Unix epoch.
func TicksFromTime(t time.Time) int64 {
	return t.Unix()*TicksPerSecond + int64(t.Nanosecond())/100
}

// TimeFromTicks converts ticks since the Unix epoch back to a UTC time.
func TimeFromTicks(ticks int64) time.Time {
	return time.Unix(ticks/TicksPerSecond, (ticks%TicksPerSecond)*100).UTC()
}

// NowTicks returns the clock's current instant in ticks.
func NowTicks(c Clock) int64 {
	return TicksFromTime(c.Now())
}
