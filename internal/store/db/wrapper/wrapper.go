package wrapper

import (
	"context"
	"database/sql"
)

// SqlDB is the write side shared by *sql.DB and *sql.Tx
type SqlDB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Querier is the read side shared by *sql.DB and *sql.Tx
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
