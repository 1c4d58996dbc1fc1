// Package builder synthesizes the DDL for a collection's backing table and
// checks that table against schema drift. The layout is fixed: one
// metadata prefix (_id, body, and optional createdAt/updatedAt) plus one
// generated column per indexed field.
package builder

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/g5becks/FractalDb-sub005/schema"
)

// Executor is the subset of *sql.DB/*sql.Conn/*sql.Tx the builder needs.
// Grounded on the teacher's own Executor interface in
// api/database/types.go, generalized to whatever connection handle the
// caller currently holds.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func genColumnName(field string) string { return "_" + field }

// DDL emits the base table, its generated columns, and its index
// statements for the given schema. Grounded on daos/schema_queries.go's
// CreateTable string-builder style.
func DDL(table string, s schema.AnySchema) (create string, indexes []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q (\n", table)
	b.WriteString("  _id TEXT PRIMARY KEY,\n")
	b.WriteString("  body BLOB NOT NULL")

	ts := s.AnyTimestamps()
	if ts.Enabled {
		fmt.Fprintf(&b, ",\n  %q INTEGER", ts.CreatedAtName)
		fmt.Fprintf(&b, ",\n  %q INTEGER", ts.UpdatedAtName)
	}

	for _, f := range s.AnyFields() {
		if !f.Indexed {
			continue
		}
		nullSQL := "NOT NULL"
		if f.Nullable {
			nullSQL = ""
		}
		fmt.Fprintf(&b, ",\n  %q %s GENERATED ALWAYS AS (jsonb_extract(body, '%s')) VIRTUAL %s",
			genColumnName(f.Name), f.Type, f.JSONPath, nullSQL)
	}
	b.WriteString("\n)")
	create = b.String()

	for _, f := range s.AnyFields() {
		if !f.Indexed {
			continue
		}
		unique := ""
		if f.Unique {
			unique = "UNIQUE "
		}
		indexes = append(indexes, fmt.Sprintf(
			"CREATE %sINDEX IF NOT EXISTS %q ON %q (%q)",
			unique, indexName(table, f.Name), table, genColumnName(f.Name)))
	}

	for _, idx := range s.AnyIndexes() {
		cols := make([]string, len(idx.Fields))
		for i, fieldName := range idx.Fields {
			cols[i] = fmt.Sprintf("%q", genColumnName(fieldName))
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		indexes = append(indexes, fmt.Sprintf(
			"CREATE %sINDEX IF NOT EXISTS %q ON %q (%s)",
			unique, idx.Name, table, strings.Join(cols, ", ")))
	}

	return create, indexes
}

func indexName(table, field string) string {
	return fmt.Sprintf("idx_%s_%s", table, field)
}

// Apply runs the table's DDL idempotently.
func Apply(ctx context.Context, exec Executor, table string, s schema.AnySchema) error {
	create, indexes := DDL(table, s)
	if _, err := exec.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("builder: create table %q: %w", table, err)
	}
	for _, stmt := range indexes {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("builder: create index on %q: %w", table, err)
		}
	}
	return nil
}

// DriftError reports a mismatch between a schema's declared generated
// columns and what the table on disk actually has.
type DriftError struct {
	Table   string
	Missing []string
	Extra   []string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("builder: table %q drifted from schema (missing=%v extra=%v)", e.Table, e.Missing, e.Extra)
}

// CheckDrift compares the generated-column set the schema declares against
// PRAGMA table_info. Grounded on api/database/schema.go's schemaCols query
// against pragma_table_info. A mismatch is reported, never auto-migrated;
// ALTER TABLE synthesis is out of scope.
func CheckDrift(ctx context.Context, exec Executor, table string, s schema.AnySchema) error {
	rows, err := exec.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return fmt.Errorf("builder: pragma table_info(%q): %w", table, err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dfltValue  any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("builder: scan table_info row: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("builder: iterate table_info rows: %w", err)
	}

	var declared []string
	for _, f := range s.AnyFields() {
		if f.Indexed {
			declared = append(declared, genColumnName(f.Name))
		}
	}

	var missing, extra []string
	declaredSet := make(map[string]bool, len(declared))
	for _, name := range declared {
		declaredSet[name] = true
		if !existing[name] {
			missing = append(missing, name)
		}
	}
	for name := range existing {
		if strings.HasPrefix(name, "_") && name != "_id" && !declaredSet[name] {
			extra = append(extra, name)
		}
	}

	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return &DriftError{Table: table, Missing: missing, Extra: extra}
}
