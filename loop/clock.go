package loop

import (
	"fmt"
	"sync"
)

// VTimeInMs defines the time in the simulated space in the unit of
// millisecond.
type VTimeInMs float64

// TimeTeller can be used to get the current virtual time.
type TimeTeller interface {
	Now() VTimeInMs
}

// A Clock is a monotonic logical time source. It never follows the wall
// clock; it only moves when the event loop decides that no work is due at
// the current time.
type Clock struct {
	lock sync.RWMutex
	now  VTimeInMs
}

// NewClock creates a Clock starting at time 0.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current virtual time.
func (c *Clock) Now() VTimeInMs {
	c.lock.RLock()
	t := c.now
	c.lock.RUnlock()
	return t
}

// AdvanceTo moves the clock forward to time t. Moving the clock backward is
// a caller bug and fails with ErrTimeRegression.
func (c *Clock) AdvanceTo(t VTimeInMs) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if t < c.now {
		return fmt.Errorf("%w: advancing to %.3f, now %.3f",
			ErrTimeRegression, t, c.now)
	}

	c.now = t

	return nil
}
