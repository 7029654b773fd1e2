package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "repo_index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesAllDeclaredTables(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Validate())
}

func TestWriteBatchUnknownTable(t *testing.T) {
	s := openTestStore(t)
	err := s.WriteBatch("not_a_real_table", []Row{{"file": "a.go"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestWriteBatchUnregisteredColumn(t *testing.T) {
	s := openTestStore(t)
	err := s.WriteBatch("files", []Row{{
		"file":         "a.go",
		"content_hash": "abc",
		"language":     "go",
		"not_a_column": "x",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered column")
}

func TestWriteBatchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	err := s.WriteBatch("files", []Row{
		{"file": "a.go", "content_hash": "h1", "language": "go"},
		{"file": "b.py", "content_hash": "h2", "language": "python"},
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&count))
	assert.Equal(t, 2, count)
}

// TestWriteBatchRejectsPrimaryKeyCollision covers spec §3 invariant 5
// and §4.3's "never as a silent SQL merge during flush, silent
// last-writer-wins is forbidden": a genuine collision on the files
// table's single-column primary key must fail the batch, not silently
// overwrite the first row.
func TestWriteBatchRejectsPrimaryKeyCollision(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteBatch("files", []Row{
		{"file": "a.go", "content_hash": "h1", "language": "go"},
	}))
	err := s.WriteBatch("files", []Row{
		{"file": "a.go", "content_hash": "h2", "language": "go"},
	})
	require.Error(t, err)

	var hash string
	require.NoError(t, s.DB().QueryRow("SELECT content_hash FROM files WHERE file = 'a.go'").Scan(&hash))
	assert.Equal(t, "h1", hash, "the first row must survive untouched, not be replaced")
}

func TestWriteBatchDeterministicRowCountAcrossRuns(t *testing.T) {
	// spec §8: "For all runs of index on an unchanged source tree,
	// per-table row counts are identical across runs."
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "repo_index.db")
	rows := []Row{
		{"file": "a.go", "content_hash": "h1", "language": "go"},
	}

	s1, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.WriteBatch("files", rows))
	var count1 int
	require.NoError(t, s1.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&count1))
	require.NoError(t, s1.Close())

	s2, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s2.WriteBatch("files", rows))
	var count2 int
	require.NoError(t, s2.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&count2))
	require.NoError(t, s2.Close())

	assert.Equal(t, count1, count2)
}

func TestTableCountMatchesRegistry(t *testing.T) {
	assert.Equal(t, TableCount, len(tables))
	assert.Equal(t, len(tables), len(flushOrder))
}

func TestEmptyStoreHasZeroRowsInAllTables(t *testing.T) {
	s := openTestStore(t)
	for _, name := range TableNames() {
		var count int
		require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM "+name).Scan(&count))
		assert.Equal(t, 0, count, "table %s should start empty", name)
	}
}
