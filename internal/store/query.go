package store

import "database/sql"

// ReadHandle is the read-only view analyzers receive (spec §4.5, §5
// "the Fact Store is read-only during taint analysis, so no locking is
// required on the store"). It is a thin wrapper so analyzer code never
// accidentally calls WriteBatch.
type ReadHandle struct {
	db *sql.DB
}

// NewReadHandle wraps an already-open store for read-only use.
func NewReadHandle(s *Store) *ReadHandle {
	return &ReadHandle{db: s.db}
}

// NewReadHandleFromDB wraps an arbitrary *sql.DB as a ReadHandle,
// bypassing Store entirely. Exists for analyzer unit tests that mock
// the database layer with DATA-DOG/go-sqlmock (ground: ariga-atlas's
// sqlmock usage) and have no real Store to open.
func NewReadHandleFromDB(db *sql.DB) *ReadHandle {
	return &ReadHandle{db: db}
}

// Query runs a read-only SQL query against the store.
func (h *ReadHandle) Query(query string, args ...any) (*sql.Rows, error) {
	return h.db.Query(query, args...)
}

// QueryRow runs a read-only SQL query expecting exactly one row.
func (h *ReadHandle) QueryRow(query string, args ...any) *sql.Row {
	return h.db.QueryRow(query, args...)
}

// Close releases the underlying database handle, for read handles
// opened directly via OpenReadOnly (a ReadHandle obtained from an
// already-open Store shares that Store's lifecycle instead).
func (h *ReadHandle) Close() error {
	return h.db.Close()
}
