package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/linkdb/internal/apperr"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MySQL server error numbers the engine boundary distinguishes.
const (
	mysqlTableExists      = 1050
	mysqlNoSuchTable      = 1146
	mysqlBadField         = 1054
	mysqlBadNull          = 1048
	mysqlDupEntry         = 1062
	mysqlNoDefault        = 1364
	mysqlOutOfRange       = 1264
	mysqlDataTruncated    = 1265
	mysqlTruncatedValue   = 1292
	mysqlWrongValue       = 1366
	mysqlDataTooLong      = 1406
	mysqlFKParent         = 1451
	mysqlFKChild          = 1452
	mysqlInvalidJSON      = 3140
	mysqlTooManyConns     = 1040
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlServerGone       = 2006
	mysqlServerLost       = 2013
	mysqlQueryInterrupted = 1317
	mysqlMaxExecTime      = 3024
)

// Translate converts a storage error into the apperr taxonomy. Errors that
// already carry a code pass through unchanged; anything unrecognised becomes
// EInternal so raw engine messages never reach tenants.
func Translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.WithOp(err, op)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(err, apperr.EStorageUnavailable, op, "storage timed out")
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(err, apperr.EStorageUnavailable, op, "storage call canceled")
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.Is(err, mysql.ErrInvalidConn):
		return apperr.Wrap(err, apperr.EStorageUnavailable, op, "storage unavailable")
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return translateMySQL(err, me.Number, op)
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		return translateSQLite(err, se.Code(), op)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return apperr.Wrap(err, apperr.EStorageUnavailable, op, "storage unavailable")
	}

	return apperr.Wrap(err, apperr.EInternal, op, "")
}

func translateMySQL(err error, number uint16, op string) error {
	switch number {
	case mysqlNoSuchTable:
		return apperr.Wrap(apperr.ErrTableNotFound, apperr.ENotFound, op, "table not found")
	case mysqlTableExists:
		return apperr.Wrap(err, apperr.ESchemaConflict, op, "table already exists")
	case mysqlBadField:
		return apperr.Wrap(err, apperr.EConstraintViolation, op, "unknown column")
	case mysqlBadNull, mysqlNoDefault:
		return apperr.Wrap(err, apperr.EConstraintViolation, op, "a required column is missing or null")
	case mysqlDupEntry:
		return apperr.Wrap(err, apperr.EConstraintViolation, op, "duplicate key")
	case mysqlOutOfRange, mysqlDataTruncated, mysqlTruncatedValue, mysqlWrongValue, mysqlDataTooLong, mysqlInvalidJSON:
		return apperr.Wrap(err, apperr.EConstraintViolation, op, "value does not match the column type")
	case mysqlFKParent, mysqlFKChild:
		return apperr.Wrap(err, apperr.EConstraintViolation, op, "foreign key constraint failed")
	case mysqlTooManyConns, mysqlLockWaitTimeout, mysqlDeadlock, mysqlServerGone, mysqlServerLost,
		mysqlQueryInterrupted, mysqlMaxExecTime:
		return apperr.Wrap(err, apperr.EStorageUnavailable, op, "storage unavailable")
	}
	return apperr.Wrap(err, apperr.EInternal, op, "")
}

func translateSQLite(err error, code int, op string) error {
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		if code == sqlite3.SQLITE_CONSTRAINT_NOTNULL {
			return apperr.Wrap(err, apperr.EConstraintViolation, op, "a required column is missing or null")
		}
		if code == sqlite3.SQLITE_CONSTRAINT_DATATYPE {
			return apperr.Wrap(err, apperr.EConstraintViolation, op, "value does not match the column type")
		}
		if code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return apperr.Wrap(err, apperr.EConstraintViolation, op, "duplicate key")
		}
		return apperr.Wrap(err, apperr.EConstraintViolation, op, "constraint failed")
	case sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG, sqlite3.SQLITE_RANGE:
		return apperr.Wrap(err, apperr.EConstraintViolation, op, "value does not match the column type")
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_INTERRUPT:
		return apperr.Wrap(err, apperr.EStorageUnavailable, op, "storage unavailable")
	case sqlite3.SQLITE_ERROR:
		msg := err.Error()
		switch {
		case strings.Contains(msg, "no such table"):
			return apperr.Wrap(apperr.ErrTableNotFound, apperr.ENotFound, op, "table not found")
		case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
			return apperr.Wrap(err, apperr.EConstraintViolation, op, "unknown column")
		case strings.Contains(msg, "already exists"):
			return apperr.Wrap(err, apperr.ESchemaConflict, op, "table already exists")
		}
	}
	return apperr.Wrap(err, apperr.EInternal, op, "")
}

// IsDuplicateKey reports whether err is a primary-key or unique violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDupEntry
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
