// Package repository defines the error taxonomy shared by all
// repositories and services.  These sentinel values allow higher
// layers such as handlers to distinguish failure scenarios and map
// each one to a stable machine-readable code.  For example,
// ErrInsufficientCapacity signals that a slot cannot hold the
// requested guests, while ErrBusy signals lock contention that the
// caller may retry from scratch.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrValidation is returned for malformed input such as a guest count
// below one or an unknown booking status.  Handlers should translate
// this into an HTTP 400 response.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own or that their role may not perform.
// Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot proceed because of
// conflicting state, such as creating a second slot for the same
// experience and date, or deleting a slot that still has bookings.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// Not-found sentinels, one per aggregate so handlers can phrase the
// response without inspecting strings.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrExperienceNotFound = errors.New("experience not found")
	ErrSlotNotFound       = errors.New("slot not found")
	ErrBookingNotFound    = errors.New("booking not found")
)

// Reservation failures surfaced by the inventory ledger.
var (
	// ErrSlotInactive is returned when reserving against a slot whose
	// slot or experience active flag is cleared.
	ErrSlotInactive = errors.New("slot is not active")
	// ErrSlotInPast is returned when the slot's date precedes the
	// current date.
	ErrSlotInPast = errors.New("slot date is in the past")
	// ErrInsufficientCapacity is the match target for CapacityError.
	ErrInsufficientCapacity = errors.New("insufficient capacity")
)

// Booking state machine failures.
var (
	// ErrInvalidTransition is returned when the target status is not
	// in the allowed set for the booking's current status, including
	// any attempt to leave a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyTerminal is returned when cancelling a booking whose
	// status is CANCELLED, COMPLETED or EXPIRED.
	ErrAlreadyTerminal = errors.New("booking already in a terminal status")
)

// ErrBusy is returned when the slot row lock cannot be acquired within
// the store's lock timeout.  No partial state persists; the caller may
// retry the whole operation.
var ErrBusy = errors.New("resource busy, retry")

// CapacityError reports that a slot has fewer remaining places than
// requested.  It matches ErrInsufficientCapacity under errors.Is so
// callers can branch on the category while errors.As exposes the
// current remaining count for the response body.
type CapacityError struct {
	Remaining uint32
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: only %d remaining", e.Remaining)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}

// MySQL server error numbers translated by translateDBError.
const (
	mysqlDupEntry        = 1062 // unique key violation
	mysqlLockWaitTimeout = 1205 // innodb_lock_wait_timeout exceeded
	mysqlDeadlock        = 1213 // deadlock found, transaction rolled back
	mysqlRowIsReferenced = 1451 // FK RESTRICT blocks delete/update
)

// translateDBError maps driver errors onto the taxonomy above.  Lock
// waits and deadlocks become ErrBusy because the enclosing transaction
// has been (or must be) rolled back and the operation is safe to retry
// whole.  Everything unrecognized passes through untouched.
func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return fmt.Errorf("%w: %v", ErrBusy, err)
		case mysqlDupEntry, mysqlRowIsReferenced:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
