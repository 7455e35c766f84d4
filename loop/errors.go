package loop

import (
	"errors"
	"fmt"
)

// ErrTimeRegression indicates an attempt to move the Clock backward. The
// event loop never does this on its own; seeing this error means the caller
// misused the Clock directly.
var ErrTimeRegression = errors.New("clock time regression")

// UnitKind tells what kind of unit of work produced a record.
type UnitKind int

// The kinds of units of work the loop executes.
const (
	UnitSync UnitKind = iota
	UnitTask
	UnitMicrotask
)

func (k UnitKind) String() string {
	switch k {
	case UnitSync:
		return "sync"
	case UnitTask:
		return "task"
	case UnitMicrotask:
		return "microtask"
	default:
		return "unknown"
	}
}

// An ExecutionError records a unit of work that failed, either by returning
// an error or by panicking. The failure is isolated to that unit; the loop
// keeps running.
type ExecutionError struct {
	Kind UnitKind
	ID   string
	Time VTimeInMs
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s failed at %.3f: %s",
		e.Kind, e.ID, e.Time, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// An UnhandledRejection records a promise that settled Rejected with no
// rejection handler attached by the time the loop went quiescent.
type UnhandledRejection struct {
	PromiseID string
	Time      VTimeInMs
	Reason    error
}

func (e *UnhandledRejection) Error() string {
	return fmt.Sprintf("promise %s rejected at %.3f with no handler: %s",
		e.PromiseID, e.Time, e.Reason)
}

func (e *UnhandledRejection) Unwrap() error {
	return e.Reason
}

// A Report summarizes one RunToCompletion call. Failures are collected here
// rather than aborting the run, so one bad unit of work cannot stop the
// deterministic processing of the rest.
type Report struct {
	FinalTime VTimeInMs

	SyncUnitsRun  int
	TasksRun      int
	MicrotasksRun int

	ExecutionErrors     []*ExecutionError
	UnhandledRejections []*UnhandledRejection
}

// Clean returns true if the run completed with no execution errors and no
// unhandled rejections.
func (r *Report) Clean() bool {
	return len(r.ExecutionErrors) == 0 && len(r.UnhandledRejections) == 0
}
