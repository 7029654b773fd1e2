package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// migrate creates every declared table (in flush order) plus its
// indexes. The registry in schema.go is the single source of DDL truth:
// there is no hand-written CREATE TABLE string to drift from it, unlike
// the teacher's internal/db/migrate.go which hand-writes its DDL
// directly — that was fine for a fixed five-table journal, but the Fact
// Store's contract (spec §4.1) requires the registry and the physical
// schema to be generated from one place.
func migrate(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	for _, name := range flushOrder {
		t := tableByName(name)
		if t == nil {
			return fmt.Errorf("migrate: flush order table %q not declared", name)
		}
		stmt := createTableSQL(t)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", t.Name, err)
		}
		for _, idx := range t.Indexes {
			idxStmt := createIndexSQL(t.Name, idx)
			if _, err := db.Exec(idxStmt); err != nil {
				return fmt.Errorf("creating index on %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func createTableSQL(t *TableDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	cols := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		constraint := "NOT NULL"
		if c.Nullable {
			constraint = ""
		}
		if constraint != "" {
			cols = append(cols, fmt.Sprintf("  %s %s %s", c.Name, c.Type, constraint))
		} else {
			cols = append(cols, fmt.Sprintf("  %s %s", c.Name, c.Type))
		}
	}
	cols = append(cols, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	b.WriteString(strings.Join(cols, ",\n"))
	b.WriteString("\n);")
	return b.String()
}

func createIndexSQL(table string, columns []string) string {
	name := fmt.Sprintf("idx_%s_%s", table, strings.Join(columns, "_"))
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);", name, table, strings.Join(columns, ", "))
}
