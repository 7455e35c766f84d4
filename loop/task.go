package loop

// An Action is a zero-argument unit of work. It runs to completion on the
// loop's single logical thread. Arguments are bound by closing over them.
type Action func() error

// A Task is a scheduled macrotask. It is owned exclusively by the TaskQueue
// that created it.
type Task struct {
	ID      string
	dueTime VTimeInMs
	seq     uint64
	action  Action

	canceled bool
	popped   bool
}

// DueTime returns the earliest virtual time at which the task may run. A
// delay is a lower bound, never a guarantee.
func (t *Task) DueTime() VTimeInMs {
	return t.dueTime
}

// A TaskHandle allows the creator of a Task to cancel it before it fires.
type TaskHandle struct {
	task *Task
}

// TaskID returns the ID of the underlying task.
func (h *TaskHandle) TaskID() string {
	return h.task.ID
}
