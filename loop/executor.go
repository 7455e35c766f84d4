package loop

import (
	"fmt"
	"log"
)

// An Executor runs one unit of work at a time on the single logical thread.
type Executor interface {
	// Run executes action synchronously to completion. A panic inside the
	// action is recovered and returned as an error.
	Run(action Action) error
}

// A CallStack is the default Executor. It enforces run-to-completion: no
// unit of work may start while another is still on the stack.
type CallStack struct {
	busy bool
}

// NewCallStack creates a CallStack.
func NewCallStack() *CallStack {
	return &CallStack{}
}

// Run executes action to completion and returns its error, converting panics
// into errors so a failing unit cannot take the loop down with it.
func (s *CallStack) Run(action Action) (err error) {
	if s.busy {
		log.Panic("a unit of work started while another is still running")
	}

	s.busy = true
	defer func() {
		s.busy = false
		if r := recover(); r != nil {
			err = fmt.Errorf("unit of work panicked: %v", r)
		}
	}()

	return action()
}
