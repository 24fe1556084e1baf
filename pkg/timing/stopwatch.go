// Package timing provides a stopwatch value passed to the code it times.
package timing

import (
	"strconv"
	"time"
)

// Stopwatch measures laps. It is a plain value owned by its caller: there is
// no shared instance. Not safe for concurrent use.
type Stopwatch struct {
	now   func() time.Time
	start time.Time
	last  time.Duration
	total time.Duration
	laps  int
}

// New returns a started stopwatch using the wall clock.
func New() *Stopwatch {
	return NewWithClock(time.Now)
}

// NewWithClock returns a started stopwatch reading time from now.
func NewWithClock(now func() time.Time) *Stopwatch {
	return &Stopwatch{now: now, start: now()}
}

// Lap ends the current lap, starts the next one and returns the lap length.
func (s *Stopwatch) Lap() time.Duration {
	t := s.now()
	s.last = t.Sub(s.start)
	s.total += s.last
	s.start = t
	s.laps++
	return s.last
}

// Last returns the length of the most recent lap.
func (s *Stopwatch) Last() time.Duration { return s.last }

// Total returns the sum of all laps.
func (s *Stopwatch) Total() time.Duration { return s.total }

// Laps returns the number of completed laps.
func (s *Stopwatch) Laps() int { return s.laps }

// Seconds returns the last lap in seconds.
func (s *Stopwatch) Seconds() float64 { return s.last.Seconds() }

// Format renders the last lap in seconds with the given number of decimals,
// e.g. "0.042s".
func (s *Stopwatch) Format(decimals int) string {
	return strconv.FormatFloat(s.Seconds(), 'f', decimals, 64) + "s"
}
