package normalize

import (
	"testing"

	"github.com/TheAuditorTool/auditor/internal/store"
)

func TestCanonicalPathNormalizesAbsoluteAndRelative(t *testing.T) {
	got := CanonicalPath("/repo", "/repo/pkg/file.go")
	if got != "pkg/file.go" {
		t.Errorf("CanonicalPath = %q, want %q", got, "pkg/file.go")
	}

	got = CanonicalPath("/repo", "pkg/file.go")
	if got != "pkg/file.go" {
		t.Errorf("CanonicalPath (already relative) = %q, want %q", got, "pkg/file.go")
	}
}

func TestCanonicalPathIsForwardSlashRegardlessOfHost(t *testing.T) {
	got := CanonicalPath("/repo", "/repo/pkg/./sub/../file.go")
	if got != "pkg/file.go" {
		t.Errorf("CanonicalPath did not clean the path: got %q", got)
	}
}

func TestDedupeByPKRemovesDuplicateComposite(t *testing.T) {
	rows := []store.Row{
		{"file": "a.go", "line": 1, "call_index": 0, "callee_name": "eval"},
		{"file": "a.go", "line": 1, "call_index": 0, "callee_name": "eval"}, // duplicate PK, identical content
		{"file": "a.go", "line": 2, "call_index": 0, "callee_name": "exec"},
	}
	out, truncated := dedupeByPK("calls", rows)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduped rows, got %d: %+v", len(out), out)
	}
	if len(truncated) != 0 {
		t.Errorf("identical-content duplicate should not be reported as truncated, got %+v", truncated)
	}
}

func TestDedupeByPKReportsDivergentContentCollision(t *testing.T) {
	rows := []store.Row{
		{"file": "a.go", "line": 1, "call_index": 0, "callee_name": "eval"},
		{"file": "a.go", "line": 1, "call_index": 0, "callee_name": "exec"}, // same PK, different content
	}
	out, truncated := dedupeByPK("calls", rows)
	if len(out) != 1 {
		t.Fatalf("expected the first row to win, got %d rows: %+v", len(out), out)
	}
	if len(truncated) != 1 {
		t.Fatalf("expected 1 truncation record for the divergent duplicate, got %d", len(truncated))
	}
	if truncated[0].Table != "calls" {
		t.Errorf("truncation record table = %q, want calls", truncated[0].Table)
	}
}

func TestDedupeByPKUnknownTablePassesThrough(t *testing.T) {
	rows := []store.Row{{"anything": 1}, {"anything": 1}}
	out, truncated := dedupeByPK("not_a_real_table", rows)
	if len(out) != 2 {
		t.Errorf("expected unknown table to pass through unchanged, got %d rows", len(out))
	}
	if len(truncated) != 0 {
		t.Errorf("expected no truncations for an unregistered table, got %+v", truncated)
	}
}

func TestResolveReferenceMarksUnresolvedWhenNameUnknown(t *testing.T) {
	row := store.Row{"name": "missing_symbol", "ref_kind": "call"}
	resolveReference(row, map[string][]string{})
	if row["resolution"] != "" || row["target_symbol_id"] != "" {
		t.Errorf("expected unresolved reference to leave empty strings, got %+v", row)
	}
}

func TestResolveReferenceMatchesKnownSymbol(t *testing.T) {
	row := store.Row{"name": "pkg.Foo", "ref_kind": "Call"}
	resolveReference(row, map[string][]string{"pkg.Foo": {"deadbeefdeadbeef"}})
	if row["resolution"] != "call" {
		t.Errorf("resolution = %v, want lowercased ref_kind", row["resolution"])
	}
	if row["target_symbol_id"] != "deadbeefdeadbeef" {
		t.Errorf("target_symbol_id = %v, want matched id", row["target_symbol_id"])
	}
}

func TestSymbolIDIsDeterministic(t *testing.T) {
	row := store.Row{"symbol_kind": "function", "qualified_name": "pkg.Foo", "line": 10}
	id1, err := symbolID("pkg/file.go", row)
	if err != nil {
		t.Fatalf("symbolID failed: %v", err)
	}
	id2, err := symbolID("pkg/file.go", row)
	if err != nil {
		t.Fatalf("symbolID failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("symbolID not deterministic: %q != %q", id1, id2)
	}
	if len(id1) != 16 {
		t.Errorf("symbolID length = %d, want 16 hex chars", len(id1))
	}
}

func TestSymbolIDDiffersOnLine(t *testing.T) {
	base := store.Row{"symbol_kind": "function", "qualified_name": "pkg.Foo", "line": 10}
	moved := store.Row{"symbol_kind": "function", "qualified_name": "pkg.Foo", "line": 11}

	id1, _ := symbolID("pkg/file.go", base)
	id2, _ := symbolID("pkg/file.go", moved)
	if id1 == id2 {
		t.Error("expected different symbol IDs for different line numbers")
	}
}
