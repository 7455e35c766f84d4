package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schedlab/vloop/loop"
	"github.com/schedlab/vloop/session"
)

var (
	demoTraceFile string
	demoMonitor   bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run an event-loop ordering demonstration",
}

func init() {
	demoCmd.PersistentFlags().StringVar(&demoTraceFile, "trace", "",
		"record the run into the given SQLite trace file")
	demoCmd.PersistentFlags().BoolVar(&demoMonitor, "monitor", false,
		"serve the run state over HTTP during the run")

	demoCmd.AddCommand(orderingCmd)
	demoCmd.AddCommand(nestedCmd)
	demoCmd.AddCommand(combinatorsCmd)
	demoCmd.AddCommand(intervalCmd)
	demoCmd.AddCommand(starvationCmd)

	rootCmd.AddCommand(demoCmd)
}

func buildDemoSession() *session.Session {
	b := session.MakeBuilder()

	if demoTraceFile == "" {
		b = b.WithoutTraceRecording()
	} else {
		b = b.WithTraceFileName(demoTraceFile)
	}

	if demoMonitor {
		b = b.WithMonitoring()
	}

	return b.Build()
}

func reportRun(s *session.Session) {
	report := s.RunToCompletion()

	fmt.Printf("quiescent at %.1f virtual ms, %d tasks, %d microtasks\n",
		report.FinalTime, report.TasksRun, report.MicrotasksRun)

	for _, e := range report.ExecutionErrors {
		fmt.Printf("execution error: %s\n", e)
	}

	for _, r := range report.UnhandledRejections {
		fmt.Printf("unhandled rejection: %s\n", r)
	}

	s.Terminate()
}

var orderingCmd = &cobra.Command{
	Use:   "ordering",
	Short: "Sync code, a zero-delay timer, and a promise continuation",
	Long: `Submits log(A), a zero-delay timer logging B, a resolved-promise ` +
		`continuation logging C, and log(D). The loop prints A, D, C, B: all ` +
		`synchronous code first, then every microtask, then the timer.`,
	Run: func(_ *cobra.Command, _ []string) {
		s := buildDemoSession()
		l := s.EventLoop()

		s.Submit(func() error {
			fmt.Println("A (sync)")

			l.ScheduleTimer(0, func() error {
				fmt.Println("B (timer, delay 0)")
				return nil
			})

			l.Resolved(nil).Then(func(any) (any, error) {
				fmt.Println("C (promise continuation)")
				return nil, nil
			}, nil)

			fmt.Println("D (sync)")
			return nil
		})

		reportRun(s)
	},
}

var nestedCmd = &cobra.Command{
	Use:   "nested",
	Short: "A microtask enqueued from a microtask still beats every timer",
	Run: func(_ *cobra.Command, _ []string) {
		s := buildDemoSession()
		l := s.EventLoop()

		s.Submit(func() error {
			l.Resolved(nil).Then(func(any) (any, error) {
				fmt.Println("X (microtask)")
				l.Resolved(nil).Then(func(any) (any, error) {
					fmt.Println("Y (microtask from a microtask)")
					return nil, nil
				}, nil)
				return nil, nil
			}, nil)

			l.ScheduleTimer(0, func() error {
				fmt.Println("Z (timer)")
				return nil
			})
			return nil
		})

		reportRun(s)
	},
}

var combinatorsCmd = &cobra.Command{
	Use:   "combinators",
	Short: "All, Race, and AllSettled over timed promises",
	Run: func(_ *cobra.Command, _ []string) {
		s := buildDemoSession()
		l := s.EventLoop()

		timed := func(delay loop.VTimeInMs, value string) *loop.Promise {
			return loop.NewPromise(l,
				func(resolve func(any), _ func(error)) {
					l.ScheduleTimer(delay, func() error {
						resolve(value)
						return nil
					})
				})
		}

		s.Submit(func() error {
			all := l.All([]*loop.Promise{
				timed(30, "slow"),
				timed(10, "fast"),
				timed(20, "medium"),
			})
			all.Then(func(v any) (any, error) {
				fmt.Printf("All resolved in input order: %v\n", v)
				return nil, nil
			}, nil)

			race := l.Race([]*loop.Promise{
				timed(30, "slow"),
				timed(10, "fast"),
			})
			race.Then(func(v any) (any, error) {
				fmt.Printf("Race won by: %v\n", v)
				return nil, nil
			}, nil)

			settled := l.AllSettled([]*loop.Promise{
				timed(10, "ok"),
				l.RejectedWith(errors.New("expected failure")),
			})
			settled.Then(func(v any) (any, error) {
				fmt.Printf("AllSettled outcomes: %v\n", v)
				return nil, nil
			}, nil)
			return nil
		})

		reportRun(s)
	},
}

var intervalCmd = &cobra.Command{
	Use:   "interval",
	Short: "Repeating timer cadence and cancellation",
	Run: func(_ *cobra.Command, _ []string) {
		s := buildDemoSession()
		l := s.EventLoop()

		s.Submit(func() error {
			count := 0
			var handle *loop.RepeatingHandle
			handle = l.ScheduleRepeating(10, func() error {
				count++
				fmt.Printf("interval firing %d at %.1f virtual ms\n",
					count, l.CurrentTime())
				if count == 5 {
					l.CancelRepeating(handle)
				}
				return nil
			})
			return nil
		})

		reportRun(s)
	},
}

var starvationCmd = &cobra.Command{
	Use:   "starvation",
	Short: "A bounded microtask chain delaying a zero-delay timer",
	Long: `Each microtask enqueues the next, and the drain is exhaustive, so ` +
		`a zero-delay timer cannot run until the chain stops. An unbounded ` +
		`chain would keep the timer waiting forever.`,
	Run: func(_ *cobra.Command, _ []string) {
		s := buildDemoSession()
		l := s.EventLoop()

		const chainDepth = 10

		s.Submit(func() error {
			l.ScheduleTimer(0, func() error {
				fmt.Println("timer finally ran")
				return nil
			})

			var enqueue func(depth int)
			enqueue = func(depth int) {
				l.Resolved(nil).Then(func(any) (any, error) {
					fmt.Printf("microtask %d of %d\n", depth, chainDepth)
					if depth < chainDepth {
						enqueue(depth + 1)
					}
					return nil, nil
				}, nil)
			}
			enqueue(1)
			return nil
		})

		reportRun(s)
	},
}
