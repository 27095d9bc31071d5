package model

import "strings"

// Role is the closed set of account roles.  Values are stored verbatim
// in the users.role column and in the JWT "role" claim.
type Role string

const (
	RoleTourist Role = "TOURIST" // books experiences for themselves
	RoleGuide   Role = "GUIDE"   // publishes experiences and manages their bookings
	RoleAdmin   Role = "ADMIN"   // full access, may act on behalf of tourists
)

// ParseRole normalizes a raw role string.  Unknown values return false
// so callers can reject them instead of falling through to a default.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleTourist:
		return RoleTourist, true
	case RoleGuide:
		return RoleGuide, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Action names an operation on bookings that is gated by role.  The
// permission table below is the single source of truth for which roles
// may attempt each action; resource ownership (own booking, own
// experience) is enforced separately by the service layer.
type Action string

const (
	ActionBookingCreate       Action = "booking.create"
	ActionBookingView         Action = "booking.view"
	ActionBookingList         Action = "booking.list"
	ActionBookingListBySlot   Action = "booking.list_by_slot"
	ActionBookingUpdateStatus Action = "booking.update_status"
	ActionBookingCancel       Action = "booking.cancel"
)

// bookingPermissions is the allowed-actor table for booking operations.
// Guides never create or cancel bookings: they accept, reject or
// complete them through status updates.  Tourists never change status
// directly; cancellation is their only mutation.
var bookingPermissions = map[Action]map[Role]bool{
	ActionBookingCreate:       {RoleTourist: true, RoleAdmin: true},
	ActionBookingView:         {RoleTourist: true, RoleAdmin: true},
	ActionBookingList:         {RoleTourist: true, RoleGuide: true, RoleAdmin: true},
	ActionBookingListBySlot:   {RoleGuide: true, RoleAdmin: true},
	ActionBookingUpdateStatus: {RoleGuide: true, RoleAdmin: true},
	ActionBookingCancel:       {RoleTourist: true, RoleAdmin: true},
}

// Can reports whether the role may attempt the action.
func Can(role Role, action Action) bool {
	return bookingPermissions[action][role]
}
