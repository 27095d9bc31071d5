package repository

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

// TestCapacityError_MatchesSentinel: errors.Is matches the category,
// errors.As exposes the count.
func TestCapacityError_MatchesSentinel(t *testing.T) {
	err := error(&CapacityError{Remaining: 3})
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.NotErrorIs(t, err, ErrConflict)

	var capErr *CapacityError
	assert.ErrorAs(t, err, &capErr)
	assert.Equal(t, uint32(3), capErr.Remaining)
	assert.Equal(t, "insufficient capacity: only 3 remaining", err.Error())
}

// TestTranslateDBError maps driver error numbers onto the taxonomy.
func TestTranslateDBError(t *testing.T) {
	assert.NoError(t, translateDBError(nil))

	busy := translateDBError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	assert.ErrorIs(t, busy, ErrBusy)

	deadlock := translateDBError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	assert.ErrorIs(t, deadlock, ErrBusy)

	dup := translateDBError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	assert.ErrorIs(t, dup, ErrConflict)

	fk := translateDBError(&mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"})
	assert.ErrorIs(t, fk, ErrConflict)

	other := errors.New("broken pipe")
	assert.Equal(t, other, translateDBError(other))
}
