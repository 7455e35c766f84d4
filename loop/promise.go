package loop

import (
	"errors"
	"fmt"
	"sync"
)

// PromiseState represents the lifecycle state of a Promise. A promise starts
// Pending and moves exactly once to Fulfilled or Rejected.
type PromiseState int

// The possible promise states.
const (
	Pending PromiseState = iota
	Fulfilled
	Rejected
)

func (s PromiseState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OnFulfilled handles a fulfillment value. Returning an error rejects the
// derived promise; returning a *Promise chains it instead of nesting.
type OnFulfilled func(value any) (any, error)

// OnRejected handles a rejection reason, with the same return contract as
// OnFulfilled.
type OnRejected func(reason error) (any, error)

// A Promise is a future settlement whose continuations run as microtasks on
// the owning event loop.
type Promise struct {
	id   string
	loop *EventLoop

	lock      sync.Mutex
	state     PromiseState
	resolving bool
	handled   bool
	value     any
	reason    error
	settledAt VTimeInMs
	waiters   []*waiter
}

// A waiter is one registered continuation. Settlement converts it into a
// microtask. A nil derived promise marks an internal adoption waiter.
type waiter struct {
	onFulfilled OnFulfilled
	onRejected  OnRejected
	derived     *Promise
}

// NewPromise creates a Promise and invokes resolver synchronously with the
// resolve and reject capabilities. A panic inside the resolver rejects the
// promise.
func NewPromise(
	l *EventLoop,
	resolver func(resolve func(any), reject func(error)),
) *Promise {
	p := newPromise(l)

	func() {
		defer func() {
			if r := recover(); r != nil {
				p.rejectWith(fmt.Errorf("resolver panicked: %v", r))
			}
		}()

		resolver(p.resolveValue, p.rejectWith)
	}()

	return p
}

func newPromise(l *EventLoop) *Promise {
	return &Promise{
		id:   GetIDGenerator().Generate(),
		loop: l,
	}
}

// ID returns the promise's ID.
func (p *Promise) ID() string {
	return p.id
}

// State returns the current state of the promise.
func (p *Promise) State() PromiseState {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state
}

// Value returns the fulfillment value, or nil if the promise is not
// Fulfilled. A fulfilled promise can legitimately carry a nil value.
func (p *Promise) Value() any {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.value
}

// Reason returns the rejection reason, or nil if the promise is not
// Rejected.
func (p *Promise) Reason() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.reason
}

// Then derives a new promise whose settlement comes from running the
// matching handler as a microtask once p settles. If p is already settled,
// the handler is scheduled immediately. A nil handler passes the outcome
// through to the derived promise unchanged.
func (p *Promise) Then(onFulfilled OnFulfilled, onRejected OnRejected) *Promise {
	derived := newPromise(p.loop)

	p.registerWaiter(&waiter{
		onFulfilled: onFulfilled,
		onRejected:  onRejected,
		derived:     derived,
	})

	return derived
}

// Catch derives a new promise with only a rejection handler.
func (p *Promise) Catch(onRejected OnRejected) *Promise {
	return p.Then(nil, onRejected)
}

// Finally runs action once p settles, regardless of outcome, and passes the
// outcome through to the derived promise.
func (p *Promise) Finally(action func()) *Promise {
	return p.Then(
		func(value any) (any, error) {
			action()
			return value, nil
		},
		func(reason error) (any, error) {
			action()
			return nil, reason
		},
	)
}

// resolveValue fulfills the promise with value, unless value is itself a
// *Promise, in which case p adopts its eventual state. No-op once settled or
// already adopting.
func (p *Promise) resolveValue(value any) {
	p.lock.Lock()
	if p.state != Pending || p.resolving {
		p.lock.Unlock()
		return
	}

	other, isPromise := value.(*Promise)
	if !isPromise {
		p.lock.Unlock()
		p.settleFulfilled(value)
		return
	}

	if other == p {
		p.lock.Unlock()
		p.settleRejected(errors.New("promise cannot adopt itself"))
		return
	}

	p.resolving = true
	p.lock.Unlock()

	other.registerWaiter(&waiter{
		onFulfilled: func(v any) (any, error) {
			p.settleFulfilled(v)
			return nil, nil
		},
		onRejected: func(reason error) (any, error) {
			p.settleRejected(reason)
			return nil, nil
		},
	})
}

// rejectWith rejects the promise. No-op once settled or adopting.
func (p *Promise) rejectWith(reason error) {
	p.lock.Lock()
	if p.state != Pending || p.resolving {
		p.lock.Unlock()
		return
	}
	p.lock.Unlock()

	p.settleRejected(reason)
}

func (p *Promise) settleFulfilled(value any) {
	p.lock.Lock()
	if p.state != Pending {
		p.lock.Unlock()
		return
	}

	p.state = Fulfilled
	p.value = value
	p.settledAt = p.loop.CurrentTime()
	waiters := p.waiters
	p.waiters = nil
	p.lock.Unlock()

	for _, w := range waiters {
		p.scheduleWaiter(w)
	}
}

func (p *Promise) settleRejected(reason error) {
	p.lock.Lock()
	if p.state != Pending {
		p.lock.Unlock()
		return
	}

	p.state = Rejected
	p.reason = reason
	p.settledAt = p.loop.CurrentTime()
	waiters := p.waiters
	p.waiters = nil
	handled := p.handled
	p.lock.Unlock()

	if !handled {
		p.loop.trackRejection(p)
	}

	for _, w := range waiters {
		p.scheduleWaiter(w)
	}
}

// registerWaiter attaches a continuation. Registering any continuation
// counts as handling a rejection: the outcome now flows onward instead of
// dying here.
func (p *Promise) registerWaiter(w *waiter) {
	p.lock.Lock()
	p.handled = true

	if p.state == Pending {
		p.waiters = append(p.waiters, w)
		p.lock.Unlock()
		return
	}

	rejected := p.state == Rejected
	p.lock.Unlock()

	if rejected {
		p.loop.untrackRejection(p)
	}

	p.scheduleWaiter(w)
}

// scheduleWaiter turns a continuation into a microtask. The promise is
// settled by the time the microtask runs.
func (p *Promise) scheduleWaiter(w *waiter) {
	p.loop.scheduleMicrotask(func() error {
		p.lock.Lock()
		state := p.state
		value := p.value
		reason := p.reason
		p.lock.Unlock()

		if state == Fulfilled {
			p.dispatchFulfilled(w, value)
		} else {
			p.dispatchRejected(w, reason)
		}

		return nil
	})
}

func (p *Promise) dispatchFulfilled(w *waiter, value any) {
	if w.onFulfilled == nil {
		if w.derived != nil {
			w.derived.resolveValue(value)
		}
		return
	}

	out, err := callHandler(func() (any, error) { return w.onFulfilled(value) })
	p.settleDerived(w.derived, out, err)
}

func (p *Promise) dispatchRejected(w *waiter, reason error) {
	if w.onRejected == nil {
		if w.derived != nil {
			w.derived.rejectWith(reason)
		}
		return
	}

	out, err := callHandler(func() (any, error) { return w.onRejected(reason) })
	p.settleDerived(w.derived, out, err)
}

func (p *Promise) settleDerived(derived *Promise, out any, err error) {
	if derived == nil {
		return
	}

	if err != nil {
		derived.rejectWith(err)
		return
	}

	derived.resolveValue(out)
}

// callHandler runs a then/catch handler, converting a panic into a rejection
// error so it settles the derived promise instead of failing the microtask.
func callHandler(h func() (any, error)) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return h()
}
