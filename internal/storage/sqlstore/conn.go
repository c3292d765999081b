// Package sqlstore implements storage.Store on top of a small connection seam
// and a per-backend Dialect. The postgres, mssql and sqlite packages supply
// the driver adapter and the SQL builders; the registry and loader logic is
// shared here.
package sqlstore

import (
	"context"
	"database/sql"
)

// Conn is the narrow connection surface the store needs.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Tx is an open transaction.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Rows is a result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// SQLConn adapts *sql.DB to Conn.
type SQLConn struct {
	DB *sql.DB
}

func (c *SQLConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execResult(c.DB.ExecContext(ctx, query, args...))
}

func (c *SQLConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (c *SQLConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (c *SQLConn) Ping(ctx context.Context) error { return c.DB.PingContext(ctx) }

func (c *SQLConn) Close() { _ = c.DB.Close() }

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execResult(t.tx.ExecContext(ctx, query, args...))
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (t *sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

func execResult(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers do not report affected rows; that is not a failure.
		return 0, nil
	}
	return n, nil
}

var (
	_ Conn = (*SQLConn)(nil)
	_ Tx   = (*sqlTx)(nil)
)
