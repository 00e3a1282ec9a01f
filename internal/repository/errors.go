// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation service to distinguish between different failure scenarios
// without looking at driver-specific errors.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ErrNotFound is returned when no live row matches the id and tenant.
// Soft-deleted rows and rows of other tenants are reported the same way.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a parking that still
// has active reservations.  Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert or update violates a unique key
// (for example two parkings with the same name).
var ErrDuplicate = errors.New("duplicate entry")

// mapErr turns driver errors into the sentinels above.  Unknown errors are
// returned unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return ErrDuplicate
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrDuplicate
	}
	return err
}
