// Package sqlite is the embedded SQLite storage backend (modernc.org/sqlite,
// no cgo). It is the default for local runs and tests.
//
// SQLite has no native timestamp type; timestamps are stored as RFC3339Nano
// text so they round-trip exactly and stay readable in the sqlite shell.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mapsync/internal/storage"
	"mapsync/internal/storage/sqlstore"
)

// Kind is the registered backend name.
const Kind = "sqlite"

// maxParams stays under the historical SQLITE_MAX_VARIABLE_NUMBER default.
const maxParams = 999

func init() {
	storage.Register(Kind, Open)
}

// Open opens cfg.DSN (a file path or ":memory:").
func Open(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A :memory: database is per connection, and sqlite serializes writers
	// anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return sqlstore.New(&sqlstore.SQLConn{DB: db}, Dialect{}, cfg.Catalog), nil
}

// Dialect renders SQLite SQL.
type Dialect struct{}

func (Dialect) Kind() string             { return Kind }
func (Dialect) Placeholder(int) string   { return "?" }
func (Dialect) Ident(name string) string { return sqlIdent(name) }
func (Dialect) MaxParams() int           { return maxParams }
func (Dialect) TimeArg(t time.Time) any  { return sqlstore.FormatTime(t) }

// Table quotes name as a single identifier; sqlite has no schemas beyond
// attached databases, so a dotted name is kept as one table name.
func (Dialect) Table(name string) string { return sqlIdent(strings.TrimSpace(name)) }

func (d Dialect) InsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	return sqlstore.InsertValues(d, "INSERT INTO", table, columns, rows)
}

func (d Dialect) CreateTableSQL(t storage.TableSpec) ([]string, error) {
	q, err := buildCreateTableSQL(t)
	if err != nil {
		return nil, err
	}
	return []string{q}, nil
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	defs, err := sqlstore.ColumnDefs(Dialect{}, t, columnType)
	if err != nil {
		return "", fmt.Errorf("sqlite: %w", err)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", Dialect{}.Table(t.Name), strings.Join(defs, ",\n  ")), nil
}

func columnType(t storage.ColumnType) (string, error) {
	switch t {
	case storage.ColumnKey, storage.ColumnText, storage.ColumnTimestamp:
		return "TEXT", nil
	case storage.ColumnNumeric:
		return "NUMERIC", nil
	case storage.ColumnInteger:
		return "INTEGER", nil
	case storage.ColumnFloat:
		return "REAL", nil
	case storage.ColumnBoolean:
		return "BOOLEAN", nil
	default:
		return "", sqlstore.UnknownColumnType(t)
	}
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

var _ sqlstore.Dialect = Dialect{}
