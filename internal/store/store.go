package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/TheAuditorTool/auditor/internal/errs"
)

// Row is one record destined for a declared table: column name -> value.
// The Normalizer is the only caller allowed to construct these directly
// with a "file" key already set (spec §4.3). WriteBatch does not check
// for "file" itself; a row without it fails at insert on the column's
// NOT NULL constraint.
type Row map[string]any

// Store is the Fact Store: a single SQLite file, opened once per run,
// single-writer (the Normalizer), many readers (the analyzers). Grounded
// on termfx-morfx's internal/db.DBConn wrapper and its PRAGMA set.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open creates (or truncates, per "regenerated from scratch each
// invocation", spec §1) the Fact Store at dbPath, applies the PRAGMAs
// the teacher's Open() uses, runs the migration, and validates the
// compile-time table-count invariant.
func Open(dbPath string) (*Store, error) {
	if len(tables) != TableCount {
		return nil, errs.Contract(
			fmt.Sprintf("declared table count %d does not match TableCount constant %d", len(tables), TableCount),
			nil,
		)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// The index is regenerated from scratch each invocation (spec §1,
	// "no migration layer"): drop any stale file before reopening.
	_ = os.Remove(dbPath)
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	lockPath := dbPath + ".lock"
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring store lock: %w", err)
	}
	if !locked {
		return nil, errs.Contract("another process already holds the Fact Store write lock", nil)
	}

	dsn := fmt.Sprintf(
		"%s?_busy_timeout=5000&_foreign_keys=ON&_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY",
		dbPath,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("migrating: %w", err)
	}

	return &Store{db: db, lock: fileLock, path: dbPath}, nil
}

// OpenReadOnly opens an already-indexed Fact Store for the analyze/taint
// commands (spec §6: "analyze — run analyzers against an existing Fact
// Store", "taint — run the taint engine against an existing Fact
// Store"). Unlike Open, it never truncates the file and takes no
// single-writer lock — only the index command owns the lock, since
// reads and writes never overlap temporally (spec §5).
func OpenReadOnly(dbPath string) (*ReadHandle, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("fact store not found at %s: run `index` first: %w", dbPath, err)
	}
	dsn := fmt.Sprintf("%s?mode=ro&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite read-only: %w", err)
	}
	return &ReadHandle{db: db}, nil
}

// Close releases the database handle and the single-writer lock.
func (s *Store) Close() error {
	err := s.db.Close()
	_ = s.lock.Unlock()
	return err
}

// DB exposes the raw *sql.DB for read-only analyzer queries (spec §4.5
// "read-only handle").
func (s *Store) DB() *sql.DB { return s.db }

// WriteBatch writes rows to table inside one transaction, retrying on
// "database is locked" the same way the teacher's execWithRetryTx does.
// Returns errs.ContractViolation-shaped errors for an unregistered table
// or a row carrying an unregistered column.
func (s *Store) WriteBatch(table string, rows []Row) error {
	t := tableByName(table)
	if t == nil {
		return errs.Contract(fmt.Sprintf("unknown table %q", table), nil)
	}
	if len(rows) == 0 {
		return nil
	}

	colNames := make([]string, len(t.Columns))
	colSet := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		colNames[i] = c.Name
		colSet[c.Name] = true
	}

	for _, r := range rows {
		for k := range r {
			if !colSet[k] {
				return errs.Contract(fmt.Sprintf("row for table %q carries unregistered column %q", table, k), nil)
			}
		}
	}

	placeholders := make([]string, len(colNames))
	for i := range colNames {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(colNames, ", "), strings.Join(placeholders, ", "),
	)

	err := withRetryTx(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(insertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			args := make([]any, len(colNames))
			for i, name := range colNames {
				args[i] = r[name]
			}
			if _, err := stmt.Exec(args...); err != nil {
				return err
			}
		}
		return nil
	})
	if isConstraint(err) {
		return errs.Contract(fmt.Sprintf("primary-key or uniqueness conflict writing table %q: %v", table, err), err)
	}
	return err
}

// Validate checks that every declared table exists in the physical
// store and every physical table (besides sqlite's own bookkeeping) is
// declared — orphans in either direction are a ContractViolation (spec
// §4.1).
func (s *Store) Validate() error {
	physical := make(map[string]bool)
	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("querying sqlite_master: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		physical[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	declared := make(map[string]bool, len(tables))
	for _, t := range tables {
		declared[t.Name] = true
		if !physical[t.Name] {
			return errs.Contract(fmt.Sprintf("declared table %q missing from physical store", t.Name), nil)
		}
	}
	for name := range physical {
		if !declared[name] {
			return errs.Contract(fmt.Sprintf("orphan physical table %q not in registry", name), nil)
		}
	}
	return nil
}

// withRetryTx runs fn inside a transaction, retrying the whole
// transaction on "database is locked" up to five times — ground:
// termfx-morfx internal/db/db.go's execWithRetryTx.
func withRetryTx(db *sql.DB, fn func(*sql.Tx) error) error {
	const maxRetries = 5
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		tx, err := db.Begin()
		if err != nil {
			lastErr = err
			if isLocked(err) {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			lastErr = err
			if isLocked(err) {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			lastErr = err
			if isLocked(err) {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after %d retries: %w", maxRetries, lastErr)
}

func isLocked(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// isConstraint reports whether err is a sqlite UNIQUE/PRIMARY KEY
// violation — a genuine collision on a composite primary key that the
// Normalizer's pre-flush dedup should already have prevented (spec §3
// invariant 5, §4.3: "never as a silent SQL merge during flush").
func isConstraint(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
