package tracerecording

import (
	"database/sql"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

// A SQLiteReader reads back a recorded trace.
type SQLiteReader struct {
	*sql.DB

	dbName string
}

// NewReader creates a SQLiteReader for the database at path + ".sqlite3".
func NewReader(path string) *SQLiteReader {
	return &SQLiteReader{dbName: path}
}

// NewReaderWithDB creates a SQLiteReader on top of an existing database
// connection.
func NewReaderWithDB(db *sql.DB) *SQLiteReader {
	return &SQLiteReader{DB: db}
}

// Init establishes the connection to the database.
func (r *SQLiteReader) Init() {
	db, err := sql.Open("sqlite3", r.dbName+".sqlite3")
	if err != nil {
		panic(err)
	}

	r.DB = db
}

// ListUnits returns every recorded unit of work in execution order.
func (r *SQLiteReader) ListUnits() ([]UnitEntry, error) {
	rows, err := r.Query(
		"SELECT seq, kind, unit_id, time_ms, failed FROM units ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []UnitEntry
	for rows.Next() {
		var u UnitEntry
		err := rows.Scan(&u.Seq, &u.Kind, &u.UnitID, &u.TimeMs, &u.Failed)
		if err != nil {
			return nil, err
		}

		units = append(units, u)
	}

	return units, rows.Err()
}

// ListErrors returns every recorded failure in collection order.
func (r *SQLiteReader) ListErrors() ([]ErrorEntry, error) {
	rows, err := r.Query(
		"SELECT seq, kind, unit_id, time_ms, message FROM errors ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errors []ErrorEntry
	for rows.Next() {
		var e ErrorEntry
		err := rows.Scan(&e.Seq, &e.Kind, &e.UnitID, &e.TimeMs, &e.Message)
		if err != nil {
			return nil, err
		}

		errors = append(errors, e)
	}

	return errors, rows.Err()
}
