package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"mapsync/internal/storage"
)

// Dialect is what differs between backends.
type Dialect interface {
	Kind() string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
	// Ident quotes a column name.
	Ident(name string) string
	// Table quotes a possibly schema-qualified table name.
	Table(name string) string
	// MaxParams is the bind parameter budget of one statement.
	MaxParams() int
	// CreateTableSQL renders the idempotent DDL statements for t.
	CreateTableSQL(t storage.TableSpec) ([]string, error)
	// InsertSQL renders one multi-row INSERT.
	InsertSQL(table string, columns []string, rows [][]any) (string, []any)
	// TimeArg converts a timestamp into the bind value the driver round-trips.
	TimeArg(t time.Time) any
}

// InsertValues builds "INSERT INTO t (cols) VALUES (...), (...)" using d's
// quoting and placeholders. Backends whose INSERT has no special form use it
// as their InsertSQL.
func InsertValues(d Dialect, prefix, table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(d.Table(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// ColumnDefs renders "<col> <type> [NOT NULL]" plus PRIMARY KEY and UNIQUE
// clauses, with types resolved by typeOf.
func ColumnDefs(d Dialect, t storage.TableSpec, typeOf func(storage.ColumnType) (string, error)) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("table %s: no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns)+1+len(t.Constraints))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("table %s: column name must be set", t.Name)
		}
		typ, err := typeOf(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Name, name, err)
		}
		def := d.Ident(name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+identList(d, t.PrimaryKey)+")")
	}
	for _, c := range t.Constraints {
		switch strings.ToLower(strings.TrimSpace(c.Kind)) {
		case "unique":
			if len(c.Columns) == 0 {
				return nil, fmt.Errorf("table %s: unique constraint requires columns", t.Name)
			}
			defs = append(defs, "UNIQUE ("+identList(d, c.Columns)+")")
		default:
			return nil, fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, c.Kind)
		}
	}
	return defs, nil
}

func identList(d Dialect, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.Ident(strings.TrimSpace(c))
	}
	return strings.Join(out, ", ")
}

// UnknownColumnType is returned by typeOf functions for unmapped types.
func UnknownColumnType(t storage.ColumnType) error {
	return fmt.Errorf("unsupported column type %q", t)
}
