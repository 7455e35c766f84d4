package loop

import (
	"container/heap"
	"sync"
)

// A TaskQueue holds the pending macrotasks ordered by due time. Tasks with
// equal due times pop in the order they were scheduled.
type TaskQueue struct {
	sync.Mutex

	timeTeller TimeTeller
	tasks      taskHeap
	nextSeq    uint64
}

// NewTaskQueue creates a TaskQueue. The TimeTeller provides the current time
// used to convert delays into due times.
func NewTaskQueue(tt TimeTeller) *TaskQueue {
	q := &TaskQueue{timeTeller: tt}
	heap.Init(&q.tasks)
	return q
}

// Schedule enqueues action to run no earlier than delay from now. Negative
// delays are treated as zero.
func (q *TaskQueue) Schedule(delay VTimeInMs, action Action) *TaskHandle {
	if delay < 0 {
		delay = 0
	}

	return q.ScheduleAt(q.timeTeller.Now()+delay, action)
}

// ScheduleAt enqueues action to run no earlier than the absolute virtual
// time dueTime.
func (q *TaskQueue) ScheduleAt(dueTime VTimeInMs, action Action) *TaskHandle {
	task := &Task{
		ID:      GetIDGenerator().Generate(),
		dueTime: dueTime,
		action:  action,
	}

	q.Lock()
	task.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.tasks, task)
	q.Unlock()

	return &TaskHandle{task: task}
}

// Cancel marks the task behind the handle inert so that it never runs.
// Canceling a task that already ran is a no-op, not an error.
func (q *TaskQueue) Cancel(h *TaskHandle) {
	if h == nil {
		return
	}

	q.Lock()
	if !h.task.popped {
		h.task.canceled = true
	}
	q.Unlock()
}

// PopNextDue removes and returns the earliest-due live task whose due time
// is at or before the given time, or nil if no such task exists.
func (q *TaskQueue) PopNextDue(atOrBefore VTimeInMs) *Task {
	q.Lock()
	defer q.Unlock()

	for q.tasks.Len() > 0 {
		task := q.tasks[0]

		if task.canceled {
			heap.Pop(&q.tasks)
			continue
		}

		if task.dueTime > atOrBefore {
			return nil
		}

		heap.Pop(&q.tasks)
		task.popped = true

		return task
	}

	return nil
}

// PeekNextDueTime returns the due time of the earliest live task. The second
// return value is false if the queue holds no live task.
func (q *TaskQueue) PeekNextDueTime() (VTimeInMs, bool) {
	q.Lock()
	defer q.Unlock()

	for q.tasks.Len() > 0 {
		task := q.tasks[0]

		if task.canceled {
			heap.Pop(&q.tasks)
			continue
		}

		return task.dueTime, true
	}

	return 0, false
}

// Len returns the number of tasks in the queue, including canceled tasks
// that have not been discarded yet.
func (q *TaskQueue) Len() int {
	q.Lock()
	l := q.tasks.Len()
	q.Unlock()
	return l
}

type taskHeap []*Task

func (h taskHeap) Len() int {
	return len(h)
}

// Less orders tasks by due time, breaking ties by scheduling order.
func (h taskHeap) Less(i, j int) bool {
	if h[i].dueTime != h[j].dueTime {
		return h[i].dueTime < h[j].dueTime
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*Task))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	*h = old[0 : n-1]
	return task
}
