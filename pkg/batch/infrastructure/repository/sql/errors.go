package sql

import (
	"database/sql/driver"
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213

	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isTransient reports whether err is a driver failure that may succeed when retried:
// deadlocks, lock timeouts, busy databases and dropped connections.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// wrap turns a driver error into a RepositoryError. Errors that already carry a batch kind,
// such as NotFound or InvalidTransition, are returned unchanged.
func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	if exception.IsBatchError(err) {
		return err
	}
	return exception.NewRepositoryError(module, msg, err, isTransient(err))
}
