package loop

import (
	"log"
	"sync"
)

// UnitInfo describes one executed unit of work. It is the Item carried by
// HookPosBeforeUnit and HookPosAfterUnit hook contexts.
type UnitInfo struct {
	Kind UnitKind
	ID   string
	Time VTimeInMs

	// Err is only set on HookPosAfterUnit, when the unit failed.
	Err error
}

// An EventLoop orchestrates the single-threaded execution contract: run the
// pending synchronous units, drain all microtasks, pop at most one due
// macrotask, advance the clock only when nothing is due, and repeat until
// quiescent.
//
// The clock and both queues are owned exclusively by the loop. All outside
// interaction goes through the scheduling and promise APIs.
type EventLoop struct {
	HookableBase

	clock *Clock
	tasks *TaskQueue
	micro *MicrotaskQueue
	exec  Executor

	pendingSync     []Action
	pendingSyncLock sync.Mutex

	isPaused      bool
	isPausedLock  sync.Mutex
	pauseLock     sync.Mutex
	singleRunLock sync.Mutex

	rejectedLock sync.Mutex
	rejected     []*Promise
}

// NewEventLoop creates an EventLoop with a fresh clock and empty queues.
func NewEventLoop() *EventLoop {
	clock := NewClock()

	return &EventLoop{
		clock: clock,
		tasks: NewTaskQueue(clock),
		micro: NewMicrotaskQueue(),
		exec:  NewCallStack(),
	}
}

// CurrentTime returns the loop's current virtual time.
func (l *EventLoop) CurrentTime() VTimeInMs {
	return l.clock.Now()
}

// QueueDepths returns the number of pending macrotasks and microtasks.
func (l *EventLoop) QueueDepths() (tasks, microtasks int) {
	return l.tasks.Len(), l.micro.Len()
}

// Submit registers a synchronous unit of work to run before any scheduled
// task. Units run in submission order, each followed by a full microtask
// drain, mirroring how a script runs before its timers.
func (l *EventLoop) Submit(action Action) {
	l.pendingSyncLock.Lock()
	l.pendingSync = append(l.pendingSync, action)
	l.pendingSyncLock.Unlock()
}

// RunToCompletion drives the loop until both queues are empty and no
// synchronous unit remains, then reports every execution error and unhandled
// rejection collected along the way. It never fails fast: a bad unit of work
// is isolated and the rest of the schedule still runs deterministically.
func (l *EventLoop) RunToCompletion() *Report {
	l.singleRunLock.Lock()
	defer l.singleRunLock.Unlock()

	report := &Report{}

	for {
		l.pauseLock.Lock()

		if sync := l.nextSyncUnit(); sync != nil {
			l.runUnit(report, UnitSync, GetIDGenerator().Generate(), sync)
			l.drainMicrotasks(report)
			l.pauseLock.Unlock()
			continue
		}

		// Microtasks enqueued outside any unit of work, such as a Then on an
		// already-settled promise registered before the run, still drain
		// before the first macrotask.
		if l.micro.Len() > 0 {
			l.drainMicrotasks(report)
			l.pauseLock.Unlock()
			continue
		}

		task := l.tasks.PopNextDue(l.clock.Now())
		if task != nil {
			l.runUnit(report, UnitTask, task.ID, task.action)
			l.drainMicrotasks(report)
			l.pauseLock.Unlock()
			continue
		}

		dueTime, ok := l.tasks.PeekNextDueTime()
		if !ok {
			l.pauseLock.Unlock()
			break
		}

		l.advanceClock(dueTime)
		l.pauseLock.Unlock()
	}

	report.FinalTime = l.clock.Now()
	l.collectUnhandledRejections(report)

	return report
}

func (l *EventLoop) nextSyncUnit() Action {
	l.pendingSyncLock.Lock()
	defer l.pendingSyncLock.Unlock()

	if len(l.pendingSync) == 0 {
		return nil
	}

	action := l.pendingSync[0]
	l.pendingSync = l.pendingSync[1:]

	return action
}

func (l *EventLoop) runUnit(
	report *Report,
	kind UnitKind,
	id string,
	action Action,
) {
	info := UnitInfo{Kind: kind, ID: id, Time: l.clock.Now()}

	hookCtx := HookCtx{
		Domain: l,
		Pos:    HookPosBeforeUnit,
		Item:   info,
	}
	l.InvokeHook(hookCtx)

	err := l.exec.Run(action)
	if err != nil {
		report.ExecutionErrors = append(report.ExecutionErrors,
			&ExecutionError{Kind: kind, ID: id, Time: info.Time, Err: err})
		info.Err = err
	}

	switch kind {
	case UnitSync:
		report.SyncUnitsRun++
	case UnitTask:
		report.TasksRun++
	case UnitMicrotask:
		report.MicrotasksRun++
	}

	hookCtx.Pos = HookPosAfterUnit
	hookCtx.Item = info
	l.InvokeHook(hookCtx)
}

func (l *EventLoop) drainMicrotasks(report *Report) {
	l.micro.DrainAll(func(mt *Microtask) {
		l.runUnit(report, UnitMicrotask, mt.ID, mt.action)
	})
}

func (l *EventLoop) advanceClock(to VTimeInMs) {
	if err := l.clock.AdvanceTo(to); err != nil {
		// The loop only ever moves the clock forward; regression here is a
		// bug in the loop itself.
		log.Panic(err)
	}

	l.InvokeHook(HookCtx{
		Domain: l,
		Pos:    HookPosClockAdvance,
		Item:   to,
	})
}

// Pause prevents the loop from starting more units of work until Continue
// is called. The unit currently on the stack still runs to completion.
func (l *EventLoop) Pause() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if l.isPaused {
		return
	}

	l.pauseLock.Lock()
	l.isPaused = true
}

// Continue allows a paused loop to process more units of work.
func (l *EventLoop) Continue() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if !l.isPaused {
		return
	}

	l.pauseLock.Unlock()
	l.isPaused = false
}

func (l *EventLoop) scheduleMicrotask(action Action) *Microtask {
	return l.micro.Enqueue(action)
}

func (l *EventLoop) trackRejection(p *Promise) {
	l.rejectedLock.Lock()
	l.rejected = append(l.rejected, p)
	l.rejectedLock.Unlock()
}

func (l *EventLoop) untrackRejection(p *Promise) {
	l.rejectedLock.Lock()
	defer l.rejectedLock.Unlock()

	for i, candidate := range l.rejected {
		if candidate == p {
			l.rejected = append(l.rejected[:i], l.rejected[i+1:]...)
			return
		}
	}
}

func (l *EventLoop) collectUnhandledRejections(report *Report) {
	l.rejectedLock.Lock()
	defer l.rejectedLock.Unlock()

	for _, p := range l.rejected {
		report.UnhandledRejections = append(report.UnhandledRejections,
			&UnhandledRejection{
				PromiseID: p.id,
				Time:      p.settledAt,
				Reason:    p.reason,
			})
	}
}
