package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRole verifies normalization and rejection of unknown roles.
func TestParseRole(t *testing.T) {
	got, ok := ParseRole("tourist")
	require.True(t, ok)
	assert.Equal(t, RoleTourist, got)

	got, ok = ParseRole("  GUIDE ")
	require.True(t, ok)
	assert.Equal(t, RoleGuide, got)

	_, ok = ParseRole("OWNER")
	assert.False(t, ok)
}

// TestCan_BookingPermissions walks the full permission table.
func TestCan_BookingPermissions(t *testing.T) {
	cases := []struct {
		action  Action
		tourist bool
		guide   bool
		admin   bool
	}{
		{ActionBookingCreate, true, false, true},
		{ActionBookingView, true, false, true},
		{ActionBookingList, true, true, true},
		{ActionBookingListBySlot, false, true, true},
		{ActionBookingUpdateStatus, false, true, true},
		{ActionBookingCancel, true, false, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.tourist, Can(RoleTourist, tc.action), "tourist %s", tc.action)
		assert.Equal(t, tc.guide, Can(RoleGuide, tc.action), "guide %s", tc.action)
		assert.Equal(t, tc.admin, Can(RoleAdmin, tc.action), "admin %s", tc.action)
	}
}

// TestCan_UnknownRoleOrAction denies by default.
func TestCan_UnknownRoleOrAction(t *testing.T) {
	assert.False(t, Can(Role("OWNER"), ActionBookingCreate))
	assert.False(t, Can(RoleAdmin, Action("booking.delete")))
}
