package loop

import (
	"log"
	"sync"
)

// ScheduleTimer enqueues action to run no earlier than delay from the
// current virtual time. The delay is a minimum, not a guarantee: the action
// runs once the loop reaches an iteration at which the timer is due and no
// earlier work remains. Timers scheduled with equal delays from the same
// unit of work fire in scheduling order.
func (l *EventLoop) ScheduleTimer(delay VTimeInMs, action Action) *TaskHandle {
	return l.tasks.Schedule(delay, action)
}

// CancelTimer prevents a scheduled timer from ever firing. Canceling a timer
// that already fired is a no-op.
func (l *EventLoop) CancelTimer(h *TaskHandle) {
	l.tasks.Cancel(h)
}

// A RepeatingHandle controls a repeating timer series.
type RepeatingHandle struct {
	lock    sync.Mutex
	loop    *EventLoop
	current *TaskHandle
	nextDue VTimeInMs
	period  VTimeInMs
	stopped bool
}

// ScheduleRepeating fires action every interval of virtual time until the
// returned handle is canceled. Each firing is scheduled relative to the
// original cadence, not to when the previous callback finished; a callback
// that outlasts the interval therefore does not push later firings back.
// Callers that need guaranteed spacing should self-reschedule with
// ScheduleTimer instead.
func (l *EventLoop) ScheduleRepeating(
	interval VTimeInMs,
	action Action,
) *RepeatingHandle {
	if interval <= 0 {
		log.Panic("repeating timer interval must be positive")
	}

	h := &RepeatingHandle{
		loop:    l,
		period:  interval,
		nextDue: l.clock.Now() + interval,
	}
	h.current = l.tasks.ScheduleAt(h.nextDue, h.fire(action))

	return h
}

// CancelRepeating stops a repeating timer series. The callback never fires
// again; canceling an already-canceled series is a no-op.
func (l *EventLoop) CancelRepeating(h *RepeatingHandle) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.stopped = true
	l.tasks.Cancel(h.current)
}

func (h *RepeatingHandle) fire(action Action) Action {
	return func() error {
		h.lock.Lock()
		if h.stopped {
			h.lock.Unlock()
			return nil
		}

		// Re-register before running the callback, keeping the cadence
		// anchored to the original schedule.
		h.nextDue += h.period
		h.current = h.loop.tasks.ScheduleAt(h.nextDue, h.fire(action))
		h.lock.Unlock()

		return action()
	}
}
