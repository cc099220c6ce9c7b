package db

import (
	"errors"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// isFull reports whether either driver rejected a write with SQLITE_FULL
func isFull(err error) bool {
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) && cgoErr.Code == sqlite3.ErrFull {
		return true
	}

	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) && pureErr.Code()&0xff == sqlitelib.SQLITE_FULL {
		return true
	}

	return false
}
