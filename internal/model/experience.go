package model

import (
	"time"

	"github.com/google/uuid"
)

// Experience mirrors the `experiences` table.  An experience is a
// guide-owned listing that tourists book through its slots.
//
// Fields:
//  ID          – primary key (UUID).
//  GuideID     – user who owns and runs the experience.
//  Title       – short display title.
//  Description – free-form description.
//  Location    – human-readable place name.
//  IsActive    – inactive experiences reject new reservations.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last modification timestamp.
type Experience struct {
	ID          uuid.UUID `json:"id"`
	GuideID     uuid.UUID `json:"guide_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
