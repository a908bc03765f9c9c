// Package counter implements a sliding-window throughput counter.
package counter

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClockRegression is returned when an increment carries a timestamp older
// than the last one observed. The counter requires a monotonic clock source.
var ErrClockRegression = errors.New("timed counter: time went backwards")

// TimedCounter keeps one bucket per second over a fixed trailing window,
// answering "how many increments in the last W seconds" in O(1) space.
// A single instance serializes its own reads and updates.
type TimedCounter struct {
	mu         sync.Mutex
	buckets    []int
	lastSecond int64
}

// New creates a TimedCounter over a window of the given number of seconds.
func New(windowSeconds int, now time.Time) (*TimedCounter, error) {
	if windowSeconds <= 0 {
		return nil, fmt.Errorf("window must be > 0, got %d", windowSeconds)
	}
	return &TimedCounter{
		buckets:    make([]int, windowSeconds),
		lastSecond: now.Unix(),
	}, nil
}

// Increment records one event at the given time. Buckets older than the
// window are discarded; a gap of a full window clears everything.
func (c *TimedCounter) Increment(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := len(c.buckets)
	second := now.Unix()
	delta := second - c.lastSecond
	switch {
	case delta < 0:
		return fmt.Errorf("%w: last=%d now=%d", ErrClockRegression, c.lastSecond, second)
	case delta == 0:
		// Same bucket, no shift.
	case delta >= int64(w):
		for i := range c.buckets {
			c.buckets[i] = 0
		}
	default:
		copy(c.buckets, c.buckets[delta:])
		for i := w - int(delta); i < w; i++ {
			c.buckets[i] = 0
		}
	}

	c.lastSecond = second
	c.buckets[w-1]++
	return nil
}

// Total returns the number of increments observed over the trailing window
// ending at the last update.
func (c *TimedCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, n := range c.buckets {
		total += n
	}
	return total
}

// Window returns the window length in seconds.
func (c *TimedCounter) Window() int {
	return len(c.buckets)
}
