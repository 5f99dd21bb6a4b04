package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNoCapacity means the conditional reservation matched no row although the slot exists.
	ErrNoCapacity = errors.New("slot has no remaining capacity")
	// ErrNotReserved means a release found no booking to give back.
	ErrNotReserved = errors.New("slot has no bookings to release")
	// ErrStaleStatus means a compare-and-set saw a different current status.
	ErrStaleStatus = errors.New("status changed concurrently")
	// ErrClaimConflict means another payout claimed some of the rows first.
	ErrClaimConflict = errors.New("billable activity already claimed")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
