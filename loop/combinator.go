package loop

// SettlementStatus labels one entry of an AllSettled outcome.
type SettlementStatus string

// The possible settlement statuses.
const (
	StatusFulfilled SettlementStatus = "fulfilled"
	StatusRejected  SettlementStatus = "rejected"
)

// An Outcome records how one input promise of AllSettled settled.
type Outcome struct {
	Status SettlementStatus
	Value  any
	Reason error
}

// Resolved returns a promise already fulfilled with value. If value is a
// *Promise, the result adopts its eventual state instead.
func (l *EventLoop) Resolved(value any) *Promise {
	p := newPromise(l)
	p.resolveValue(value)
	return p
}

// RejectedWith returns a promise already rejected with reason.
func (l *EventLoop) RejectedWith(reason error) *Promise {
	p := newPromise(l)
	p.rejectWith(reason)
	return p
}

// All resolves with the values of every input, in input order, once all of
// them fulfill. It rejects with the first rejection observed; the remaining
// inputs are not canceled and still settle silently. An empty input resolves
// immediately with an empty slice.
func (l *EventLoop) All(promises []*Promise) *Promise {
	return NewPromise(l, func(resolve func(any), reject func(error)) {
		if len(promises) == 0 {
			resolve([]any{})
			return
		}

		values := make([]any, len(promises))
		remaining := len(promises)

		for i, p := range promises {
			i := i
			p.Then(
				func(value any) (any, error) {
					values[i] = value
					remaining--
					if remaining == 0 {
						resolve(values)
					}
					return nil, nil
				},
				func(reason error) (any, error) {
					reject(reason)
					return nil, nil
				},
			)
		}
	})
}

// Race settles with whichever input settles first chronologically,
// independent of input order. An empty input stays pending forever.
func (l *EventLoop) Race(promises []*Promise) *Promise {
	return NewPromise(l, func(resolve func(any), reject func(error)) {
		for _, p := range promises {
			p.Then(
				func(value any) (any, error) {
					resolve(value)
					return nil, nil
				},
				func(reason error) (any, error) {
					reject(reason)
					return nil, nil
				},
			)
		}
	})
}

// AllSettled resolves with one Outcome per input, in input order, once every
// input has settled. It never rejects.
func (l *EventLoop) AllSettled(promises []*Promise) *Promise {
	return NewPromise(l, func(resolve func(any), _ func(error)) {
		if len(promises) == 0 {
			resolve([]Outcome{})
			return
		}

		outcomes := make([]Outcome, len(promises))
		remaining := len(promises)

		for i, p := range promises {
			i := i
			p.Then(
				func(value any) (any, error) {
					outcomes[i] = Outcome{Status: StatusFulfilled, Value: value}
					remaining--
					if remaining == 0 {
						resolve(outcomes)
					}
					return nil, nil
				},
				func(reason error) (any, error) {
					outcomes[i] = Outcome{Status: StatusRejected, Reason: reason}
					remaining--
					if remaining == 0 {
						resolve(outcomes)
					}
					return nil, nil
				},
			)
		}
	})
}
