package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStopwatchLaps(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	sw := NewWithClock(clock.now)

	clock.advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, sw.Lap())

	clock.advance(42 * time.Millisecond)
	sw.Lap()
	assert.Equal(t, 42*time.Millisecond, sw.Last())
	assert.Equal(t, 1542*time.Millisecond, sw.Total())
	assert.Equal(t, 2, sw.Laps())
	assert.InDelta(t, 0.042, sw.Seconds(), 1e-12)
	assert.Equal(t, "0.042s", sw.Format(3))
	assert.Equal(t, "0.0s", sw.Format(1))
}

func TestStopwatchWallClock(t *testing.T) {
	sw := New()
	time.Sleep(time.Millisecond)
	assert.Positive(t, sw.Lap())
}
