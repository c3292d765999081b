// Package postgres is the PostgreSQL storage backend, built on a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mapsync/internal/storage"
	"mapsync/internal/storage/sqlstore"
)

// Kind is the registered backend name.
const Kind = "postgres"

// maxParams is the Postgres wire protocol limit on bind parameters.
const maxParams = 65535

func init() {
	storage.Register(Kind, Open)
}

// Open connects a pool to cfg.DSN and verifies it with a ping.
func Open(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return sqlstore.New(&poolConn{pool: pool}, Dialect{}, cfg.Catalog), nil
}

// Dialect renders Postgres SQL.
type Dialect struct{}

func (Dialect) Kind() string             { return Kind }
func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (Dialect) Ident(name string) string { return pgIdent(name) }
func (Dialect) MaxParams() int           { return maxParams }
func (Dialect) TimeArg(t time.Time) any  { return t.UTC() }

// Table quotes each part of a schema-qualified name.
func (Dialect) Table(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

func (d Dialect) InsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	return buildInsertSQL(table, columns, rows)
}

func (d Dialect) CreateTableSQL(t storage.TableSpec) ([]string, error) {
	schemaSQL, baseSQL, err := buildCreateSQL(t)
	if err != nil {
		return nil, err
	}
	if schemaSQL == "" {
		return []string{baseSQL}, nil
	}
	return []string{schemaSQL, baseSQL}, nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Constraints:
//   - every row has len(columns) cells.
//   - columns is non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	return sqlstore.InsertValues(Dialect{}, "INSERT INTO", table, columns, rows)
}

// buildCreateSQL returns an optional CREATE SCHEMA for qualified names and the
// CREATE TABLE IF NOT EXISTS statement.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, baseSQL string, err error) {
	defs, err := sqlstore.ColumnDefs(Dialect{}, t, columnType)
	if err != nil {
		return "", "", fmt.Errorf("postgres: %w", err)
	}
	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}
	baseSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, Dialect{}.Table(t.Name), strings.Join(defs, ", "))
	return schemaSQL, baseSQL, nil
}

func columnType(t storage.ColumnType) (string, error) {
	switch t {
	case storage.ColumnKey, storage.ColumnText:
		return "TEXT", nil
	case storage.ColumnNumeric:
		return "NUMERIC", nil
	case storage.ColumnInteger:
		return "BIGINT", nil
	case storage.ColumnFloat:
		return "DOUBLE PRECISION", nil
	case storage.ColumnTimestamp:
		return "TIMESTAMPTZ", nil
	case storage.ColumnBoolean:
		return "BOOLEAN", nil
	default:
		return "", sqlstore.UnknownColumnType(t)
	}
}

// pgIdent double-quotes an identifier, doubling embedded quotes.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// splitQualifiedName splits "schema.table"; anything else is unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// poolConn adapts *pgxpool.Pool to sqlstore.Conn.
type poolConn struct {
	pool *pgxpool.Pool
}

func (c *poolConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *poolConn) Query(ctx context.Context, query string, args ...any) (sqlstore.Rows, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *poolConn) Begin(ctx context.Context) (sqlstore.Tx, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (c *poolConn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *poolConn) Close() { c.pool.Close() }

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Query(ctx context.Context, query string, args ...any) (sqlstore.Rows, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

var (
	_ sqlstore.Conn    = (*poolConn)(nil)
	_ sqlstore.Tx      = (*pgTx)(nil)
	_ sqlstore.Dialect = Dialect{}
)
