package session

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/xid"

	"github.com/schedlab/vloop/loop"
	"github.com/schedlab/vloop/monitoring"
	"github.com/schedlab/vloop/tracerecording"
)

// Builder can be used to build a session.
type Builder struct {
	monitorOn     bool
	monitorPort   int
	traceOn       bool
	traceFileName string
}

// MakeBuilder creates a new builder with the default configuration: trace
// recording on, monitoring off.
func MakeBuilder() Builder {
	return Builder{
		traceOn: true,
	}
}

// WithMonitoring sets the session to start a monitoring server.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutTraceRecording sets the session to not record a trace.
func (b Builder) WithoutTraceRecording() Builder {
	b.traceOn = false
	return b
}

// WithTraceFileName sets the custom output file name for the trace recorder.
func (b Builder) WithTraceFileName(filename string) Builder {
	b.traceFileName = filename
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.traceOn && b.traceFileName != "" {
		panic("trace file name cannot be set when trace recording is disabled")
	}
}

// loadEnvOverrides applies configuration from the environment, optionally
// loaded from a .env file in the working directory.
func (b Builder) loadEnvOverrides() Builder {
	_ = godotenv.Load()

	if port := os.Getenv("VLOOP_MONITOR_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			panic("invalid VLOOP_MONITOR_PORT: " + port)
		}

		b.monitorOn = true
		b.monitorPort = p
	}

	if trace := os.Getenv("VLOOP_TRACE"); trace != "" {
		b.traceOn = true
		b.traceFileName = trace
	}

	return b
}

// Build builds the session.
func (b Builder) Build() *Session {
	b = b.loadEnvOverrides()
	b.parametersMustBeValid()

	s := &Session{
		id:        xid.New().String(),
		eventLoop: loop.NewEventLoop(),
	}

	if b.traceOn {
		outputPath := b.traceFileName
		if outputPath == "" {
			outputPath = "vloop_trace_" + s.id
		}

		s.recorder = tracerecording.NewWriter(outputPath)
		s.eventLoop.AcceptHook(tracerecording.NewTraceHook(s.recorder))
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterEventLoop(s.eventLoop)
		s.monitor.StartServer()
	}

	return s
}
