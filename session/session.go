// Package session wires a clock, an event loop, a trace recorder, and a
// monitor into one ready-to-run unit.
package session

import (
	"github.com/schedlab/vloop/loop"
	"github.com/schedlab/vloop/monitoring"
	"github.com/schedlab/vloop/tracerecording"
)

// A Session owns one event loop together with its recording and monitoring
// services.
type Session struct {
	id        string
	eventLoop *loop.EventLoop
	recorder  *tracerecording.SQLiteWriter
	monitor   *monitoring.Monitor
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.id
}

// EventLoop returns the loop driven by the session.
func (s *Session) EventLoop() *loop.EventLoop {
	return s.eventLoop
}

// Monitor returns the monitor of the session, or nil if monitoring is
// disabled.
func (s *Session) Monitor() *monitoring.Monitor {
	return s.monitor
}

// TraceRecorder returns the trace recorder of the session, or nil if trace
// recording is disabled.
func (s *Session) TraceRecorder() *tracerecording.SQLiteWriter {
	return s.recorder
}

// Submit registers a synchronous unit of work on the loop.
func (s *Session) Submit(action loop.Action) {
	s.eventLoop.Submit(action)
}

// RunToCompletion drives the loop until quiescent and flushes the trace.
func (s *Session) RunToCompletion() *loop.Report {
	report := s.eventLoop.RunToCompletion()

	if s.recorder != nil {
		s.recorder.Flush()
	}

	return report
}

// Terminate releases the resources held by the session.
func (s *Session) Terminate() {
	if s.recorder != nil {
		s.recorder.Flush()
		s.recorder.Close()
	}
}
