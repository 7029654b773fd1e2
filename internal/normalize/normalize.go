// Package normalize implements the Normalizer (spec §4.3): the single
// writer that takes per-file staging buffers from the extractors and
// flushes them to the Fact Store with canonical paths, stable symbol
// identifiers, and resolved cross-references. Ground: termfx-morfx has
// no analogue (morfx doesn't persist a cross-file index) so this
// package is built fresh in the house style of the teacher's
// internal/writer/staging.go staged-then-committed pattern —
// accumulate, then flush in one pass.
package normalize

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mitchellh/hashstructure"

	"github.com/TheAuditorTool/auditor/internal/errs"
	"github.com/TheAuditorTool/auditor/internal/extract"
	"github.com/TheAuditorTool/auditor/internal/facts"
	"github.com/TheAuditorTool/auditor/internal/logging"
	"github.com/TheAuditorTool/auditor/internal/store"
)

// Buffers is the Normalizer's input: file_path -> per-table rows,
// exactly the contract shape from spec §4.3 ("a map file_path ->
// {table_name -> [row]}").
type Buffers map[string]extract.Output

// Receipt is the post-flush row-count manifest (spec §4.3, GLOSSARY
// "Receipt"), written once per run for reconciliation.
type Receipt struct {
	Counts      map[string]int     `json:"counts"`
	Truncations []TruncationRecord `json:"truncations,omitempty"`
}

// TruncationRecord documents one dropped row: a composite primary key
// that collided with an already-flushed row carrying different
// content. Spec §4.3: "any duplicate primary key after per-file dedup
// is fatal in test mode and logged in normal mode with a truncation
// record; silent last-writer-wins is forbidden." A duplicate whose
// content is identical to the first-seen row is not a collision (the
// same construct visited twice by an AST walker, per §4.2's own
// per-extractor dedup) and is dropped without a record.
type TruncationRecord struct {
	Table string `json:"table"`
	Key   string `json:"key"`
}

// symbolKey is the hashstructure input for stable symbol IDs (spec
// invariant 4): a deterministic function of (canonical_path,
// symbol_kind, qualified_name, start_line). Ground: dolthub-go-mysql-
// server's use of hashstructure for structural hashing, repurposed
// here for deterministic ID derivation instead of cache keys.
type symbolKey struct {
	Path          string
	Kind          string
	QualifiedName string
	Line          int
}

// Normalizer is the single writer to the Fact Store.
type Normalizer struct {
	store    *store.Store
	root     string
	TestMode bool
}

// New constructs a Normalizer bound to an open Store and the project
// root used for path canonicalization. Callers that want the §4.3
// "fatal in test mode" behavior on a genuine primary-key collision set
// TestMode on the returned value before calling Flush.
func New(s *store.Store, root string) *Normalizer {
	return &Normalizer{store: s, root: root}
}

// Flush performs the full normalize-and-write pass: canonicalize
// paths, inject "file", assign symbol IDs, resolve references,
// deduplicate, and write every table in the Store's declared flush
// order. Returns the receipt for the caller to persist.
func (n *Normalizer) Flush(bufs Buffers) (Receipt, error) {
	canon := make(map[string]string, len(bufs)) // original path -> canonical path
	var paths []string
	for p := range bufs {
		paths = append(paths, p)
		canon[p] = CanonicalPath(n.root, p)
	}
	sort.Strings(paths) // deterministic iteration (spec invariant 3)

	collected := make(map[string][]store.Row) // table -> rows across all files
	symbolIndex := make(map[string][]string)                         // qualified_name -> symbol_ids

	// Pass 1: symbols only, so the reference-resolution index is
	// complete before any reference row is processed.
	for _, p := range paths {
		rows := bufs[p][facts.TableSymbols]
		for _, r := range rows {
			if _, exists := r["file"]; exists {
				return Receipt{}, errs.Contract("extractor row for symbols already carries a \"file\" key", nil)
			}
			id, err := symbolID(canon[p], r)
			if err != nil {
				return Receipt{}, err
			}
			out := store.Row{}
			for k, v := range r {
				out[k] = v
			}
			out["file"] = canon[p]
			out["symbol_id"] = id
			collected[facts.TableSymbols] = append(collected[facts.TableSymbols], out)
			symbolIndex[r["qualified_name"].(string)] = append(symbolIndex[r["qualified_name"].(string)], id)
		}
	}

	// Pass 2: every other table, with reference resolution for the
	// references table specifically.
	for _, p := range paths {
		for table, rows := range bufs[p] {
			if table == facts.TableSymbols {
				continue
			}
			for _, r := range rows {
				if _, exists := r["file"]; exists {
					return Receipt{}, errs.Contract("extractor row for "+table+" already carries a \"file\" key", nil)
				}
				out := store.Row{}
				for k, v := range r {
					out[k] = v
				}
				out["file"] = canon[p]
				if table == facts.TableReferences {
					resolveReference(out, symbolIndex)
				}
				collected[table] = append(collected[table], out)
			}
		}
	}

	receipt := Receipt{Counts: map[string]int{}}
	for _, table := range store.TableNames() {
		rows, truncated := dedupeByPK(table, collected[table])
		if len(truncated) > 0 {
			if n.TestMode {
				return Receipt{}, errs.Contract(
					fmt.Sprintf("table %q: %d duplicate primary key(s) with divergent row content", table, len(truncated)),
					nil,
				)
			}
			for _, t := range truncated {
				logging.Default().Warnw("dropping row with duplicate primary key and divergent content",
					"table", t.Table, "key", t.Key)
			}
			receipt.Truncations = append(receipt.Truncations, truncated...)
		}
		if err := n.store.WriteBatch(table, rows); err != nil {
			return Receipt{}, err
		}
		receipt.Counts[table] = len(rows)
	}

	return receipt, nil
}

// CanonicalPath implements spec §4.3's canonicalization step: relative
// to project root, forward-slash normalized regardless of host OS.
func CanonicalPath(root, path string) string {
	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(root, path); err == nil {
			rel = r
		}
	}
	return filepath.ToSlash(filepath.Clean(rel))
}

func symbolID(canonPath string, r store.Row) (string, error) {
	line, _ := r["line"].(int)
	h, err := hashstructure.Hash(symbolKey{
		Path:          canonPath,
		Kind:          r["symbol_kind"].(string),
		QualifiedName: r["qualified_name"].(string),
		Line:          line,
	}, nil)
	if err != nil {
		return "", err
	}
	return hashToHex(h), nil
}

func hashToHex(h uint64) string {
	const hextable = "0123456789abcdef"
	b := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		b[i] = hextable[h&0xf]
		h >>= 4
	}
	return string(b)
}

// resolveReference attempts to match a references row to a known
// symbol by qualified name. Unresolved rows keep resolution empty
// (spec §4.3 "unresolved references remain marked", Nullable Policy:
// empty string, not null, since downstream code distinguishes
// "attempted but unresolved" via the resolution column's emptiness,
// not via a tri-state).
func resolveReference(row store.Row, index map[string][]string) {
	name, _ := row["name"].(string)
	ids, ok := index[name]
	if !ok || len(ids) == 0 {
		row["resolution"] = ""
		row["target_symbol_id"] = ""
		return
	}
	row["resolution"] = strings.ToLower(row["ref_kind"].(string))
	row["target_symbol_id"] = ids[0]
}

// pkColumns mirrors store/schema.go's declared primary keys, per
// table, so the Normalizer can dedup composite keys without importing
// the store package's private table registry (the store package
// exposes no column introspection — deliberately, since the schema is
// meant to be consulted in one place).
var pkColumns = map[string][]string{
	facts.TableFiles:                {"file"},
	facts.TableSymbols:              {"file", "symbol_kind", "qualified_name", "line"},
	facts.TableReferences:           {"file", "line", "col", "name"},
	facts.TableCalls:                {"file", "line", "call_index"},
	facts.TableArguments:            {"file", "line", "call_index", "position"},
	facts.TableAssignments:          {"file", "line", "lhs"},
	facts.TableReturns:              {"file", "line"},
	facts.TableRoutes:               {"file", "line", "pattern", "method"},
	facts.TableRouteParams:          {"file", "line", "pattern", "name"},
	facts.TableDependencyManifests:  {"file", "manager", "name"},
	facts.TableOrmModels:            {"file", "line", "class_name"},
	facts.TableOrmAssociations:      {"file", "line", "owner_class", "assoc_name"},
	facts.TableJobQueueTasks:        {"file", "line", "task_name"},
	facts.TableJobQueueWorkers:      {"file", "line", "worker_name"},
	facts.TableDiInjections:         {"file", "line", "symbol", "dependency_name"},
	facts.TableValidatorSchemas:     {"file", "line", "schema_name"},
	facts.TableFormDefinitions:      {"file", "line", "form_name", "action_name"},
	facts.TableTaskDecorators:       {"file", "line", "symbol", "decorator"},
	facts.TableBeatSchedules:        {"file", "line", "task_name"},
	facts.TableTestFixtures:         {"file", "line", "fixture_name"},
	facts.TableTestParametrizations: {"file", "line", "test_name"},
	facts.TableTestMarkers:          {"file", "line", "test_name", "marker"},
	facts.TableGeneratorYields:      {"file", "line", "function_name"},
	facts.TablePropertyAccessors:    {"file", "line", "class_name", "property_name", "accessor_kind"},
	facts.TableLoopComplexity:       {"file", "line", "function_name"},
	facts.TableStateMutations:       {"file", "line", "target", "operation"},
	facts.TableExceptionSites:       {"file", "line", "site_kind", "exception_type"},
	facts.TableIoOperations:         {"file", "line", "op_kind"},
	facts.TableIacResources:         {"file", "line", "resource_type", "resource_name"},
	facts.TableIacVariables:         {"file", "line", "var_name"},
	facts.TableTaintSources:         {"file", "line", "function_name", "var_name"},
	facts.TableTaintSinks:           {"file", "line", "function_name", "var_name"},
}

// dedupeByPK deduplicates rows across files by their declared
// composite primary key (spec invariant 5: "deduplication happens
// before flush, never as a silent SQL merge during flush"). A
// duplicate key whose row content differs from the first-seen row is
// a genuine collision and is reported via the returned
// TruncationRecord slice rather than dropped without a trace; an
// identical-content duplicate (the same construct visited twice by an
// AST walker) is dropped silently, matching the extractors' own
// per-file dedup.
func dedupeByPK(table string, rows []store.Row) ([]store.Row, []TruncationRecord) {
	cols, ok := pkColumns[table]
	if !ok {
		return rows, nil
	}
	seen := make(map[string]store.Row, len(rows))
	out := make([]store.Row, 0, len(rows))
	var truncated []TruncationRecord
	for _, r := range rows {
		var b strings.Builder
		for _, c := range cols {
			b.WriteString(toKeyPart(r[c]))
			b.WriteByte('\x1f')
		}
		k := b.String()
		if prev, dup := seen[k]; dup {
			if !rowsEqual(prev, r) {
				truncated = append(truncated, TruncationRecord{Table: table, Key: k})
			}
			continue
		}
		seen[k] = r
		out = append(out, r)
	}
	return out, truncated
}

// rowsEqual reports whether a and b carry the same column values,
// comparing the JSON-ish scalar types rows are built from (string,
// int, bool, nil).
func rowsEqual(a, b store.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

func toKeyPart(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// MarshalReceipt serializes a Receipt with goccy/go-json (ground:
// erigon's use of goccy/go-json on its own hot JSON paths — the
// receipt is small and written once per run).
func MarshalReceipt(r Receipt) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
