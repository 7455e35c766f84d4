// Package monitoring turns an event-loop run into a small web server that
// allows external inspection and control of the run.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/schedlab/vloop/loop"
)

// A Monitor exposes a loop's virtual time, queue depths, pause control, and
// collected failures over HTTP while the loop runs.
type Monitor struct {
	eventLoop  *loop.EventLoop
	portNumber int
	url        string

	reportLock sync.Mutex
	report     *loop.Report
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEventLoop registers the loop to be monitored.
func (m *Monitor) RegisterEventLoop(l *loop.EventLoop) {
	m.eventLoop = l
}

// StartServer starts the monitor as a web server, on the configured port or
// a random free port.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/queues", m.queueDepths)
	r.HandleFunc("/api/pause", m.pauseLoop)
	r.HandleFunc("/api/continue", m.continueLoop)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/report", m.lastReport)
	r.HandleFunc("/api/state", m.loopState)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring event loop with %s\n", m.url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

// URL returns the address the monitor serves on. It is empty before
// StartServer is called.
func (m *Monitor) URL() string {
	return m.url
}

// OpenDashboard opens the monitor URL in the system browser.
func (m *Monitor) OpenDashboard() error {
	return browser.OpenURL(m.url)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%.3f}", m.eventLoop.CurrentTime())
}

func (m *Monitor) queueDepths(w http.ResponseWriter, _ *http.Request) {
	tasks, microtasks := m.eventLoop.QueueDepths()
	fmt.Fprintf(w, "{\"tasks\":%d,\"microtasks\":%d}", tasks, microtasks)
}

func (m *Monitor) pauseLoop(w http.ResponseWriter, _ *http.Request) {
	m.eventLoop.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueLoop(w http.ResponseWriter, _ *http.Request) {
	m.eventLoop.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	go func() {
		report := m.eventLoop.RunToCompletion()

		m.reportLock.Lock()
		m.report = report
		m.reportLock.Unlock()
	}()
}

func (m *Monitor) lastReport(w http.ResponseWriter, _ *http.Request) {
	m.reportLock.Lock()
	report := m.report
	m.reportLock.Unlock()

	if report == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("no completed run yet"))
		dieOnErr(err)
		return
	}

	rsp := reportRsp{
		FinalTime:     float64(report.FinalTime),
		SyncUnitsRun:  report.SyncUnitsRun,
		TasksRun:      report.TasksRun,
		MicrotasksRun: report.MicrotasksRun,
	}
	for _, e := range report.ExecutionErrors {
		rsp.ExecutionErrors = append(rsp.ExecutionErrors, e.Error())
	}
	for _, r := range report.UnhandledRejections {
		rsp.UnhandledRejections = append(rsp.UnhandledRejections, r.Error())
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type reportRsp struct {
	FinalTime           float64  `json:"final_time"`
	SyncUnitsRun        int      `json:"sync_units_run"`
	TasksRun            int      `json:"tasks_run"`
	MicrotasksRun       int      `json:"microtasks_run"`
	ExecutionErrors     []string `json:"execution_errors,omitempty"`
	UnhandledRejections []string `json:"unhandled_rejections,omitempty"`
}

func (m *Monitor) loopState(w http.ResponseWriter, _ *http.Request) {
	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.eventLoop)
	serializer.SetMaxDepth(1)

	err := serializer.Serialize(w)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
