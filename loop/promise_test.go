package loop

import (
	"errors"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Promise", func() {
	var (
		l     *EventLoop
		order []string
	)

	ginkgo.BeforeEach(func() {
		l = NewEventLoop()
		order = nil
	})

	ginkgo.It("should invoke the resolver synchronously", func() {
		called := false

		NewPromise(l, func(resolve func(any), _ func(error)) {
			called = true
			resolve(42)
		})

		Expect(called).To(BeTrue())
	})

	ginkgo.It("should settle exactly once", func() {
		p := NewPromise(l, func(resolve func(any), reject func(error)) {
			resolve("first")
			resolve("second")
			reject(errors.New("late"))
		})

		Expect(p.State()).To(Equal(Fulfilled))
		Expect(p.Value()).To(Equal("first"))
		Expect(p.Reason()).To(BeNil())
	})

	ginkgo.It("should not fulfill after a rejection", func() {
		wantErr := errors.New("no")

		p := NewPromise(l, func(resolve func(any), reject func(error)) {
			reject(wantErr)
			resolve("too late")
		})

		Expect(p.State()).To(Equal(Rejected))
		Expect(p.Reason()).To(MatchError(wantErr))

		p.Catch(func(error) (any, error) { return nil, nil })
		l.RunToCompletion()
	})

	ginkgo.It("should reject when the resolver panics", func() {
		p := NewPromise(l, func(func(any), func(error)) {
			panic("resolver exploded")
		})

		Expect(p.State()).To(Equal(Rejected))
		Expect(p.Reason().Error()).To(ContainSubstring("resolver exploded"))

		p.Catch(func(error) (any, error) { return nil, nil })
		l.RunToCompletion()
	})

	ginkgo.It("should run handlers as microtasks, not synchronously", func() {
		l.Submit(func() error {
			l.Resolved("v").Then(func(any) (any, error) {
				order = append(order, "handler")
				return nil, nil
			}, nil)
			order = append(order, "sync")
			return nil
		})

		l.RunToCompletion()

		Expect(order).To(Equal([]string{"sync", "handler"}))
	})

	ginkgo.It("should invoke handlers registered after settlement, in registration order", func() {
		l.Submit(func() error {
			p := l.Resolved("v")
			p.Then(func(any) (any, error) {
				order = append(order, "first")
				return nil, nil
			}, nil)
			p.Then(func(any) (any, error) {
				order = append(order, "second")
				return nil, nil
			}, nil)
			return nil
		})

		l.RunToCompletion()

		Expect(order).To(Equal([]string{"first", "second"}))
	})

	ginkgo.It("should chain the value through Then", func() {
		var got any

		l.Submit(func() error {
			l.Resolved(1).
				Then(func(v any) (any, error) { return v.(int) + 1, nil }, nil).
				Then(func(v any) (any, error) { return v.(int) * 10, nil }, nil).
				Then(func(v any) (any, error) {
					got = v
					return nil, nil
				}, nil)
			return nil
		})

		l.RunToCompletion()

		Expect(got).To(Equal(20))
	})

	ginkgo.It("should adopt a promise returned from a handler instead of nesting it", func() {
		var got any

		l.Submit(func() error {
			l.Resolved(nil).
				Then(func(any) (any, error) {
					inner := NewPromise(l, func(resolve func(any), _ func(error)) {
						l.ScheduleTimer(10, func() error {
							resolve("inner value")
							return nil
						})
					})
					return inner, nil
				}, nil).
				Then(func(v any) (any, error) {
					got = v
					return nil, nil
				}, nil)
			return nil
		})

		report := l.RunToCompletion()

		Expect(got).To(Equal("inner value"))
		Expect(report.Clean()).To(BeTrue())
	})

	ginkgo.It("should adopt a promise passed to resolve", func() {
		var got any

		l.Submit(func() error {
			inner := NewPromise(l, func(resolve func(any), _ func(error)) {
				l.ScheduleTimer(5, func() error {
					resolve("adopted")
					return nil
				})
			})

			outer := NewPromise(l, func(resolve func(any), _ func(error)) {
				resolve(inner)
			})

			outer.Then(func(v any) (any, error) {
				got = v
				return nil, nil
			}, nil)
			return nil
		})

		l.RunToCompletion()

		Expect(got).To(Equal("adopted"))
	})

	ginkgo.It("should reject a promise that adopts itself", func() {
		var p *Promise
		p = NewPromise(l, func(resolve func(any), _ func(error)) {
			l.ScheduleTimer(0, func() error {
				resolve(p)
				return nil
			})
		})

		var reason error
		p.Catch(func(r error) (any, error) {
			reason = r
			return nil, nil
		})

		l.Submit(func() error { return nil })
		l.RunToCompletion()

		Expect(reason).To(HaveOccurred())
		Expect(reason.Error()).To(ContainSubstring("itself"))
	})

	ginkgo.It("should propagate a rejection past missing handlers", func() {
		wantErr := errors.New("down the chain")
		var got error

		l.Submit(func() error {
			l.RejectedWith(wantErr).
				Then(func(v any) (any, error) { return v, nil }, nil).
				Catch(func(r error) (any, error) {
					got = r
					return nil, nil
				})
			return nil
		})

		report := l.RunToCompletion()

		Expect(got).To(MatchError(wantErr))
		Expect(report.UnhandledRejections).To(BeEmpty())
	})

	ginkgo.It("should reject the derived promise when a handler fails", func() {
		wantErr := errors.New("handler failed")
		var got error

		l.Submit(func() error {
			l.Resolved(nil).
				Then(func(any) (any, error) { return nil, wantErr }, nil).
				Catch(func(r error) (any, error) {
					got = r
					return nil, nil
				})
			return nil
		})

		l.RunToCompletion()

		Expect(got).To(MatchError(wantErr))
	})

	ginkgo.It("should reject the derived promise when a handler panics", func() {
		var got error

		l.Submit(func() error {
			l.Resolved(nil).
				Then(func(any) (any, error) { panic("handler imploded") }, nil).
				Catch(func(r error) (any, error) {
					got = r
					return nil, nil
				})
			return nil
		})

		report := l.RunToCompletion()

		Expect(got).To(HaveOccurred())
		Expect(got.Error()).To(ContainSubstring("handler imploded"))
		Expect(report.ExecutionErrors).To(BeEmpty())
	})

	ginkgo.It("should run Finally on both outcomes and pass the outcome through", func() {
		wantErr := errors.New("still rejected")
		finallyRuns := 0
		var got any
		var gotErr error

		l.Submit(func() error {
			l.Resolved("kept").
				Finally(func() { finallyRuns++ }).
				Then(func(v any) (any, error) {
					got = v
					return nil, nil
				}, nil)

			l.RejectedWith(wantErr).
				Finally(func() { finallyRuns++ }).
				Catch(func(r error) (any, error) {
					gotErr = r
					return nil, nil
				})
			return nil
		})

		l.RunToCompletion()

		Expect(finallyRuns).To(Equal(2))
		Expect(got).To(Equal("kept"))
		Expect(gotErr).To(MatchError(wantErr))
	})

	ginkgo.It("should report an unhandled rejection at quiescence", func() {
		wantErr := errors.New("nobody cares")

		l.Submit(func() error {
			l.RejectedWith(wantErr)
			return nil
		})

		report := l.RunToCompletion()

		Expect(report.UnhandledRejections).To(HaveLen(1))
		Expect(report.UnhandledRejections[0].Reason).To(MatchError(wantErr))
	})

	ginkgo.It("should report the tail of an unhandled rejection chain", func() {
		l.Submit(func() error {
			l.RejectedWith(errors.New("tail")).
				Then(func(v any) (any, error) { return v, nil }, nil)
			return nil
		})

		report := l.RunToCompletion()

		// The derived promise now carries the rejection and nothing handles
		// it, so exactly one rejection surfaces.
		Expect(report.UnhandledRejections).To(HaveLen(1))
	})

	ginkgo.It("should not report a rejection handled before quiescence", func() {
		l.Submit(func() error {
			p := l.RejectedWith(errors.New("handled later"))
			l.ScheduleTimer(10, func() error {
				p.Catch(func(error) (any, error) { return nil, nil })
				return nil
			})
			return nil
		})

		report := l.RunToCompletion()

		Expect(report.UnhandledRejections).To(BeEmpty())
	})
})
