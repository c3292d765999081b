package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mapsync/internal/catalog"
	"mapsync/internal/storage"
)

// Store implements storage.Store for any Conn and Dialect.
type Store struct {
	conn    Conn
	dialect Dialect
	cat     *catalog.Catalog

	// now is replaced in tests.
	now func() time.Time
}

// New wraps conn. cat may be nil.
func New(conn Conn, d Dialect, cat *catalog.Catalog) *Store {
	return &Store{conn: conn, dialect: d, cat: cat, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Kind() string { return s.dialect.Kind() }

func (s *Store) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

func (s *Store) Close() { s.conn.Close() }

// EnsureRegistry creates the registry tables.
func (s *Store) EnsureRegistry(ctx context.Context) error {
	return s.EnsureTables(ctx, storage.RegistryTables())
}

// EnsureTables runs the dialect's idempotent DDL for every auto-created table.
func (s *Store) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		if !t.AutoCreateTable {
			continue
		}
		stmts, err := s.dialect.CreateTableSQL(t)
		if err != nil {
			return err
		}
		for _, q := range stmts {
			if _, err := s.conn.Exec(ctx, q); err != nil {
				return fmt.Errorf("%s: create table %s: %w", s.dialect.Kind(), t.Name, err)
			}
		}
	}
	return nil
}

// chunkSize is the number of rows per INSERT for ncols columns.
func (s *Store) chunkSize(ncols int) int {
	n := s.dialect.MaxParams() / max(1, ncols)
	if n < 1 {
		n = 1
	}
	return n
}

// Load inserts rows into table in one transaction.
//
// Errors:
//   - storage.ErrInvalidLoad for shape problems; nothing is written.
//   - driver errors roll the whole table back; the result carries the message.
func (s *Store) Load(ctx context.Context, table string, columns []string, rows [][]any) (storage.LoadResult, error) {
	if err := storage.ValidateLoad(table, columns, rows); err != nil {
		return storage.LoadResult{Message: err.Error()}, err
	}
	if len(rows) == 0 {
		return storage.LoadResult{Success: true, Message: "no rows"}, nil
	}

	fail := func(err error) (storage.LoadResult, error) {
		err = fmt.Errorf("%s: load %s: %w", s.dialect.Kind(), table, err)
		return storage.LoadResult{Message: err.Error()}, err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback(ctx)

	var total int64
	step := s.chunkSize(len(columns))
	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		q, args := s.dialect.InsertSQL(table, columns, s.bindRows(rows[start:end]))
		n, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return fail(err)
		}
		total += n
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(err)
	}
	return storage.LoadResult{
		Success:      true,
		RowsAffected: total,
		Message:      fmt.Sprintf("Successfully inserted %d rows into %s", total, table),
	}, nil
}

// bindRows converts time.Time cells with the dialect's TimeArg.
func (s *Store) bindRows(rows [][]any) [][]any {
	out := rows
	copied := false
	for i, r := range rows {
		for j, v := range r {
			t, ok := v.(time.Time)
			if !ok {
				continue
			}
			if !copied {
				out = make([][]any, len(rows))
				for k := range rows {
					out[k] = append([]any(nil), rows[k]...)
				}
				copied = true
			}
			out[i][j] = s.dialect.TimeArg(t)
		}
	}
	return out
}

// where renders "col = <placeholder>" clauses joined by AND, numbering from
// start.
func (s *Store) where(start int, cols ...string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = s.dialect.Ident(c) + " = " + s.dialect.Placeholder(start+i)
	}
	return strings.Join(parts, " AND ")
}

func (s *Store) columns(cols ...string) string {
	return identList(s.dialect, cols)
}
