package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the closed set of booking lifecycle states.
type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusExpired   BookingStatus = "EXPIRED"
)

// ParseBookingStatus normalizes a raw status string.  Unknown values
// return false; callers must treat that as a validation failure, never
// as a default.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	switch BookingStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusCancelled:
		return StatusCancelled, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusExpired:
		return StatusExpired, true
	}
	return "", false
}

// allowedTransitions is the full transition table of the booking state
// machine.  CANCELLED, COMPLETED and EXPIRED are terminal: they map to
// an empty set and nothing may leave them.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
	StatusCancelled: {},
	StatusCompleted: {},
	StatusExpired:   {},
}

// CanTransitionTo reports whether the state machine permits moving from
// s to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no outgoing transitions exist for s.
func (s BookingStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Booking mirrors the `bookings` table.  The experience title and
// prices are snapshots captured when the booking was created; they are
// historical facts and are never recomputed from the live experience
// or slot.  A booking row is never deleted: cancellation is a status
// transition.
//
// Fields:
//  ID                 – primary key (UUID).
//  TravelerID         – tourist who holds the booking.
//  SlotID             – slot the guests are counted against.
//  Guests             – number of guests, always >= 1.
//  ExperienceTitle    – snapshot of the experience title.
//  PricePerGuestCents – snapshot of the slot's per-guest price.
//  TotalCents         – PricePerGuestCents * Guests, captured at creation.
//  Status             – current lifecycle state.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last status change timestamp.
type Booking struct {
	ID                 uuid.UUID     `json:"id"`
	TravelerID         uuid.UUID     `json:"traveler_id"`
	SlotID             uuid.UUID     `json:"slot_id"`
	Guests             uint32        `json:"guests"`
	ExperienceTitle    string        `json:"experience_title"`
	PricePerGuestCents uint32        `json:"price_per_guest_cents"`
	TotalCents         uint32        `json:"total_cents"`
	Status             BookingStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
