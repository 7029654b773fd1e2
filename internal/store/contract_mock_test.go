package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// TestValidateDetectsOrphanTable exercises the orphan-detection branch of
// Validate() against a mocked sqlite_master result set, without touching
// a real file — ground: ariga-atlas's sql/postgres/driver_test.go
// sqlmock.New() style, repurposed here for the Fact Store's own
// contract checks rather than a live database driver.
func TestValidateDetectsOrphanTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name"})
	for _, td := range tables {
		rows.AddRow(td.Name)
	}
	rows.AddRow("mystery_table")
	mock.ExpectQuery(`SELECT name FROM sqlite_master`).WillReturnRows(rows)

	s := &Store{db: db}
	err = s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "mystery_table")
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestValidateDetectsMissingDeclaredTable exercises the other direction:
// a declared table absent from the physical store.
func TestValidateDetectsMissingDeclaredTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name"})
	for i, td := range tables {
		if i == 0 {
			continue // skip the first declared table to force a mismatch
		}
		rows.AddRow(td.Name)
	}
	mock.ExpectQuery(`SELECT name FROM sqlite_master`).WillReturnRows(rows)

	s := &Store{db: db}
	err = s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing from physical store")
	require.NoError(t, mock.ExpectationsWereMet())
}
