package loop

import "sync"

// A Microtask is a unit of work that must run before the next macrotask. It
// is owned exclusively by the MicrotaskQueue.
type Microtask struct {
	ID     string
	action Action
}

// A MicrotaskQueue is a FIFO queue of microtasks. It is always drained
// exhaustively before the loop pops another macrotask.
type MicrotaskQueue struct {
	sync.Mutex
	microtasks []*Microtask
}

// NewMicrotaskQueue creates an empty MicrotaskQueue.
func NewMicrotaskQueue() *MicrotaskQueue {
	return &MicrotaskQueue{}
}

// Enqueue appends action to the end of the queue.
func (q *MicrotaskQueue) Enqueue(action Action) *Microtask {
	mt := &Microtask{
		ID:     GetIDGenerator().Generate(),
		action: action,
	}

	q.Lock()
	q.microtasks = append(q.microtasks, mt)
	q.Unlock()

	return mt
}

// Pop removes and returns the microtask at the front of the queue, or nil if
// the queue is empty.
func (q *MicrotaskQueue) Pop() *Microtask {
	q.Lock()
	defer q.Unlock()

	if len(q.microtasks) == 0 {
		return nil
	}

	mt := q.microtasks[0]
	q.microtasks = q.microtasks[1:]

	return mt
}

// Len returns the number of queued microtasks.
func (q *MicrotaskQueue) Len() int {
	q.Lock()
	l := len(q.microtasks)
	q.Unlock()
	return l
}

// DrainAll pops and runs microtasks from the front until the queue is empty,
// including microtasks enqueued while draining. The queue offers no cycle
// breaker: a microtask that unconditionally re-enqueues itself keeps every
// macrotask waiting forever, exactly as unbounded microtask chains do on the
// real platform.
func (q *MicrotaskQueue) DrainAll(run func(mt *Microtask)) {
	for {
		mt := q.Pop()
		if mt == nil {
			return
		}

		run(mt)
	}
}
