// Package tracerecording stores the units of work executed by an event loop
// in a SQLite database, so a completed run can be inspected offline.
package tracerecording

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A UnitEntry is one recorded unit of work.
type UnitEntry struct {
	Seq    int
	Kind   string
	UnitID string
	TimeMs float64
	Failed bool
}

// An ErrorEntry is one recorded failure, either an execution error or an
// unhandled rejection.
type ErrorEntry struct {
	Seq     int
	Kind    string
	UnitID  string
	TimeMs  float64
	Message string
}

// A TraceRecorder is a backend that can record the trace of a run.
type TraceRecorder interface {
	// RecordUnit buffers one executed unit of work.
	RecordUnit(entry UnitEntry)

	// RecordError buffers one failure.
	RecordError(entry ErrorEntry)

	// Flush writes all the buffered entries into the database.
	Flush()
}

// A SQLiteWriter records trace entries into a SQLite database, batching
// inserts until Flush.
type SQLiteWriter struct {
	*sql.DB

	lock      sync.Mutex
	dbName    string
	batchSize int
	units     []UnitEntry
	errors    []ErrorEntry
}

// NewWriter creates a SQLiteWriter that writes to path + ".sqlite3". An
// empty path picks a unique name. The file must not already exist.
func NewWriter(path string) *SQLiteWriter {
	w := &SQLiteWriter{
		dbName:    path,
		batchSize: 100000,
	}

	w.Init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWriterWithDB creates a SQLiteWriter on top of an existing database
// connection.
func NewWriterWithDB(db *sql.DB) *SQLiteWriter {
	w := &SQLiteWriter{
		DB:        db,
		batchSize: 100000,
	}

	w.createTables()

	atexit.Register(func() { w.Flush() })

	return w
}

// Init establishes the connection to the database and creates the trace
// tables.
func (w *SQLiteWriter) Init() {
	if w.dbName == "" {
		w.dbName = "vloop_trace_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for trace recording: %s\n",
		filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.DB = db
	w.createTables()
}

func (w *SQLiteWriter) createTables() {
	w.mustExecute(`CREATE TABLE units (
	seq INTEGER,
	kind TEXT,
	unit_id TEXT,
	time_ms REAL,
	failed INTEGER
);`)
	w.mustExecute(`CREATE TABLE errors (
	seq INTEGER,
	kind TEXT,
	unit_id TEXT,
	time_ms REAL,
	message TEXT
);`)
}

// RecordUnit buffers one executed unit of work.
func (w *SQLiteWriter) RecordUnit(entry UnitEntry) {
	w.lock.Lock()
	w.units = append(w.units, entry)
	full := len(w.units)+len(w.errors) >= w.batchSize
	w.lock.Unlock()

	if full {
		w.Flush()
	}
}

// RecordError buffers one failure.
func (w *SQLiteWriter) RecordError(entry ErrorEntry) {
	w.lock.Lock()
	w.errors = append(w.errors, entry)
	full := len(w.units)+len(w.errors) >= w.batchSize
	w.lock.Unlock()

	if full {
		w.Flush()
	}
}

// Flush writes all the buffered entries into the database.
func (w *SQLiteWriter) Flush() {
	w.lock.Lock()
	units := w.units
	errors := w.errors
	w.units = nil
	w.errors = nil
	w.lock.Unlock()

	if len(units) == 0 && len(errors) == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	unitStmt, err := w.Prepare("INSERT INTO units VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		panic(err)
	}
	defer unitStmt.Close()

	for _, u := range units {
		_, err := unitStmt.Exec(u.Seq, u.Kind, u.UnitID, u.TimeMs, u.Failed)
		if err != nil {
			panic(err)
		}
	}

	errorStmt, err := w.Prepare("INSERT INTO errors VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		panic(err)
	}
	defer errorStmt.Close()

	for _, e := range errors {
		_, err := errorStmt.Exec(e.Seq, e.Kind, e.UnitID, e.TimeMs, e.Message)
		if err != nil {
			panic(err)
		}
	}
}

func (w *SQLiteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
