// Package store implements the Fact Store: a single relational index
// declaring every table a language frontend may populate, with a strict
// table registry, flush ordering, and a contract-validation pass (spec
// §3, §4.1). Grounded on termfx-morfx's internal/db package — same
// database/sql + mattn/go-sqlite3 direct-SQL style, same PRAGMA set —
// generalized from a single-purpose run journal into a declared,
// self-validating multi-table registry.
package store

import "fmt"

// ColumnDef declares one column of a fact table.
type ColumnDef struct {
	Name     string
	Type     string // SQLite storage class: TEXT, INTEGER, REAL, BLOB
	Nullable bool   // explicit per spec §4.1's nullable policy
}

// TableDef declares one fact table: its columns, composite primary key,
// and any secondary indexes.
type TableDef struct {
	Name       string
	Columns    []ColumnDef
	PrimaryKey []string
	Indexes    [][]string
}

func col(name, typ string) ColumnDef { return ColumnDef{Name: name, Type: typ} }

func nullableCol(name, typ string) ColumnDef {
	return ColumnDef{Name: name, Type: typ, Nullable: true}
}

// tables is the single source of truth for the schema: every table any
// extractor may write to is declared here. TableCount below must match
// len(tables) or the store refuses to start (spec §4.1, §9 "Schema
// contract is a compile-time invariant").
var tables = []TableDef{
	{
		Name: "files",
		Columns: []ColumnDef{
			col("file", "TEXT"),
			col("content_hash", "TEXT"),
			col("language", "TEXT"),
			nullableCol("framework_tags", "TEXT"),
		},
		PrimaryKey: []string{"file"},
	},
	{
		Name: "symbols",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"),
			col("symbol_id", "TEXT"), col("symbol_kind", "TEXT"),
			col("qualified_name", "TEXT"), col("name", "TEXT"),
			nullableCol("end_line", "INTEGER"), col("scope", "TEXT"),
			nullableCol("params_json", "TEXT"),
		},
		PrimaryKey: []string{"file", "symbol_kind", "qualified_name", "line"},
		Indexes:    [][]string{{"symbol_id"}},
	},
	{
		Name: "references",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("col", "INTEGER"),
			col("name", "TEXT"), col("ref_kind", "TEXT"),
			nullableCol("resolution", "TEXT"), nullableCol("target_symbol_id", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "col", "name"},
	},
	{
		Name: "calls",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("call_index", "INTEGER"),
			col("caller_symbol", "TEXT"), col("callee_name", "TEXT"),
			col("callee_resolved", "INTEGER"),
		},
		PrimaryKey: []string{"file", "line", "call_index"},
	},
	{
		Name: "arguments",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("call_index", "INTEGER"),
			col("position", "INTEGER"), nullableCol("keyword", "TEXT"),
			col("expr", "TEXT"), col("vars_read_json", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "call_index", "position"},
	},
	{
		Name: "assignments",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("lhs", "TEXT"),
			col("vars_read_json", "TEXT"), col("scope", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "lhs"},
	},
	{
		Name: "returns",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"),
			col("vars_read_json", "TEXT"), col("scope", "TEXT"),
		},
		PrimaryKey: []string{"file", "line"},
	},
	{
		Name: "routes",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("method", "TEXT"),
			col("pattern", "TEXT"), nullableCol("handler_symbol", "TEXT"),
			col("endpoint_kind", "TEXT"),
			col("has_group_segments", "INTEGER"), col("has_optional_params", "INTEGER"),
			col("has_rest_params", "INTEGER"),
		},
		PrimaryKey: []string{"file", "line", "pattern", "method"},
	},
	{
		Name: "route_params",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("pattern", "TEXT"),
			col("name", "TEXT"), col("optional", "INTEGER"),
			nullableCol("matcher", "TEXT"), col("segment", "INTEGER"),
			col("is_rest", "INTEGER"),
		},
		PrimaryKey: []string{"file", "line", "pattern", "name"},
	},
	{
		Name: "dependency_manifests",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("manager", "TEXT"), col("name", "TEXT"),
			col("version_constraint", "TEXT"), col("is_dev", "INTEGER"),
			col("is_optional_group", "INTEGER"), col("raw_entry", "TEXT"),
		},
		PrimaryKey: []string{"file", "manager", "name"},
	},
	{
		Name: "orm_models",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("class_name", "TEXT"),
			nullableCol("table_name", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "class_name"},
	},
	{
		Name: "orm_associations",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("owner_class", "TEXT"),
			col("assoc_name", "TEXT"), col("assoc_type", "TEXT"),
			nullableCol("target_class", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "owner_class", "assoc_name"},
	},
	{
		Name: "job_queue_tasks",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("task_name", "TEXT"),
			nullableCol("queue", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "task_name"},
	},
	{
		Name: "job_queue_workers",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("worker_name", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "worker_name"},
	},
	{
		Name: "di_injections",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("symbol", "TEXT"),
			col("dependency_name", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "symbol", "dependency_name"},
	},
	{
		Name: "validator_schemas",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("schema_name", "TEXT"),
			col("framework", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "schema_name"},
	},
	{
		Name: "form_definitions",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("form_name", "TEXT"),
			col("action_name", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "form_name", "action_name"},
	},
	{
		Name: "task_decorators",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("symbol", "TEXT"),
			col("decorator", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "symbol", "decorator"},
	},
	{
		Name: "beat_schedules",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("task_name", "TEXT"),
			col("schedule", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "task_name"},
	},
	{
		Name: "test_fixtures",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("fixture_name", "TEXT"),
			col("scope", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "fixture_name"},
	},
	{
		Name: "test_parametrizations",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("test_name", "TEXT"),
			col("params_json", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "test_name"},
	},
	{
		Name: "test_markers",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("test_name", "TEXT"),
			col("marker", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "test_name", "marker"},
	},
	{
		Name: "generator_yields",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("function_name", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "function_name"},
	},
	{
		Name: "property_accessors",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("class_name", "TEXT"),
			col("property_name", "TEXT"), col("accessor_kind", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "class_name", "property_name", "accessor_kind"},
	},
	{
		Name: "loop_complexity",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("function_name", "TEXT"),
			col("depth", "INTEGER"),
		},
		PrimaryKey: []string{"file", "line", "function_name"},
	},
	{
		Name: "state_mutations",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("target", "TEXT"),
			col("operation", "TEXT"), col("is_init", "INTEGER"),
			col("is_property_setter", "INTEGER"), col("is_dunder_method", "INTEGER"),
		},
		PrimaryKey: []string{"file", "line", "target", "operation"},
	},
	{
		Name: "exception_sites",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("site_kind", "TEXT"),
			col("exception_type", "TEXT"), nullableCol("enclosing_function", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "site_kind", "exception_type"},
	},
	{
		Name: "io_operations",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("op_kind", "TEXT"),
			nullableCol("target", "TEXT"), col("is_static", "INTEGER"),
			col("requires_runtime_analysis", "INTEGER"),
		},
		PrimaryKey: []string{"file", "line", "op_kind"},
	},
	{
		Name: "iac_resources",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("resource_type", "TEXT"),
			col("resource_name", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "resource_type", "resource_name"},
	},
	{
		Name: "iac_variables",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("var_name", "TEXT"),
			nullableCol("default_value", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "var_name"},
	},
	{
		Name: "taint_sources",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("function_name", "TEXT"),
			col("var_name", "TEXT"), col("source_kind", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "function_name", "var_name"},
	},
	{
		Name: "taint_sinks",
		Columns: []ColumnDef{
			col("file", "TEXT"), col("line", "INTEGER"), col("function_name", "TEXT"),
			col("var_name", "TEXT"), col("sink_kind", "TEXT"),
		},
		PrimaryKey: []string{"file", "line", "function_name", "var_name"},
	},
}

// TableCount is the compile-time invariant from spec §4.1/§9: it must
// equal len(tables). A contributor who adds a table and forgets to bump
// this constant causes Open to refuse to start.
const TableCount = 32

// flushOrder is the topologically-sorted table write sequence (spec
// §4.1 "Flush ordering"): referenced-entity tables (files, symbols)
// precede referrer tables so foreign-key-shaped lookups never race a
// write. There are no real FOREIGN KEY constraints (the store is a
// single-file index regenerated per run, not a long-lived relational
// schema) but the ordering is still load-bearing for the Normalizer's
// resolution pass, which wants symbols flushed before references.
var flushOrder = []string{
	"files",
	"symbols",
	"references",
	"calls",
	"arguments",
	"assignments",
	"returns",
	"routes",
	"route_params",
	"dependency_manifests",
	"orm_models",
	"orm_associations",
	"job_queue_tasks",
	"job_queue_workers",
	"di_injections",
	"validator_schemas",
	"form_definitions",
	"task_decorators",
	"beat_schedules",
	"test_fixtures",
	"test_parametrizations",
	"test_markers",
	"generator_yields",
	"property_accessors",
	"loop_complexity",
	"state_mutations",
	"exception_sites",
	"io_operations",
	"iac_resources",
	"iac_variables",
	"taint_sources",
	"taint_sinks",
}

func init() {
	if len(tables) != TableCount {
		panic(fmt.Sprintf("store: TableCount=%d but %d tables declared — bump the constant", TableCount, len(tables)))
	}
	if len(flushOrder) != len(tables) {
		panic(fmt.Sprintf("store: flushOrder has %d entries but %d tables declared", len(flushOrder), len(tables)))
	}
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if seen[t.Name] {
			panic(fmt.Sprintf("store: duplicate table declaration %q", t.Name))
		}
		seen[t.Name] = true
	}
	for _, name := range flushOrder {
		if !seen[name] {
			panic(fmt.Sprintf("store: flushOrder references undeclared table %q", name))
		}
	}
}

// TableNames returns the declared table names in flush order.
func TableNames() []string {
	out := make([]string, len(flushOrder))
	copy(out, flushOrder)
	return out
}

// tableByName returns the TableDef for name, or nil if undeclared.
func tableByName(name string) *TableDef {
	for i := range tables {
		if tables[i].Name == name {
			return &tables[i]
		}
	}
	return nil
}
