// Package shared holds small helpers used by more than one package.
package shared

import "strings"

// IsSQLiteBusyError reports whether err is a SQLITE_BUSY failure, raised
// when another connection holds the write lock.
func IsSQLiteBusyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError reports whether err is a "database is locked"
// failure, the other shape SQLite contention takes.
func IsSQLiteLockedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError reports whether err is either contention error.
// Callers retry these with backoff; anything else is surfaced as-is.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}
