package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransitions_Pending verifies the outgoing edges of PENDING.
func TestTransitions_Pending(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusConfirmed))
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusPending.CanTransitionTo(StatusExpired))
	assert.False(t, StatusPending.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusPending.CanTransitionTo(StatusPending))
}

// TestTransitions_Confirmed verifies the outgoing edges of CONFIRMED.
func TestTransitions_Confirmed(t *testing.T) {
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusPending))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusExpired))
}

// TestTransitions_TerminalStatesHaveNoExits verifies nothing leaves a
// terminal state, including a repeated cancel.
func TestTransitions_TerminalStatesHaveNoExits(t *testing.T) {
	all := []BookingStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusExpired}
	for _, terminal := range []BookingStatus{StatusCancelled, StatusCompleted, StatusExpired} {
		assert.True(t, terminal.Terminal(), "%s should be terminal", terminal)
		for _, target := range all {
			assert.False(t, terminal.CanTransitionTo(target), "%s -> %s should be rejected", terminal, target)
		}
	}
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
}

// TestParseBookingStatus verifies normalization and rejection of
// unknown values.
func TestParseBookingStatus(t *testing.T) {
	got, ok := ParseBookingStatus(" pending ")
	require.True(t, ok)
	assert.Equal(t, StatusPending, got)

	got, ok = ParseBookingStatus("CONFIRMED")
	require.True(t, ok)
	assert.Equal(t, StatusConfirmed, got)

	_, ok = ParseBookingStatus("ON_HOLD")
	assert.False(t, ok)
	_, ok = ParseBookingStatus("")
	assert.False(t, ok)
}
