package model

import (
	"time"

	"github.com/google/uuid"
)

// Slot mirrors the `slots` table.  A slot is a dated, time-boxed
// instance of an experience with finite guest capacity.  The pair
// (experience_id, date) is unique.
//
// Remaining is the contended value of the whole system.  The
// invariants 0 <= Remaining <= Capacity and
// Capacity - Remaining == sum of guests over non-cancelled bookings
// hold at every commit; only SlotRepo.ReserveTx and SlotRepo.ReleaseTx
// mutate Remaining, and only under a row lock.
//
// Fields:
//  ID           – primary key (UUID).
//  ExperienceID – owning experience.
//  Date         – calendar date of the slot (time part zero, UTC).
//  StartTime    – start of day time, "HH:MM:SS".
//  EndTime      – end of day time, "HH:MM:SS".
//  Capacity     – positive guest ceiling; raised only explicitly.
//  Remaining    – currently available guest capacity.
//  PriceCents   – per-guest price for this slot.
//  IsActive     – inactive slots reject new reservations.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last modification timestamp.
type Slot struct {
	ID           uuid.UUID `json:"id"`
	ExperienceID uuid.UUID `json:"experience_id"`
	Date         time.Time `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Capacity     uint32    `json:"capacity"`
	Remaining    uint32    `json:"remaining"`
	PriceCents   uint32    `json:"price_cents"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
