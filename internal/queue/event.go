// Package queue defines message payloads exchanged over the message
// broker, the best-effort publisher, and the background consumer that
// stands in for the email/calendar collaborators.
package queue

// BookingCreatedEvent is published after a booking transaction
// commits.  It carries enough information for downstream consumers to
// notify the traveler and the guide, and to create a calendar event
// when the traveler has linked an external calendar, without querying
// the primary database.
type BookingCreatedEvent struct {
	BookingID       string  `json:"booking_id"`
	TravelerID      string  `json:"traveler_id"`
	TravelerName    string  `json:"traveler_name"`
	TravelerEmail   string  `json:"traveler_email"`
	GuideName       string  `json:"guide_name"`
	GuideEmail      string  `json:"guide_email"`
	ExperienceTitle string  `json:"experience_title"`
	Date            string  `json:"date"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	Guests          uint32  `json:"guests"`
	TotalCents      uint32  `json:"total_cents"`
	CalendarEmail   *string `json:"calendar_email,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// BookingCancelledEvent is published after a cancellation commits so
// both parties can be told the capacity has been released.
type BookingCancelledEvent struct {
	BookingID       string `json:"booking_id"`
	TravelerID      string `json:"traveler_id"`
	TravelerName    string `json:"traveler_name"`
	TravelerEmail   string `json:"traveler_email"`
	GuideName       string `json:"guide_name"`
	GuideEmail      string `json:"guide_email"`
	ExperienceTitle string `json:"experience_title"`
	Date            string `json:"date"`
	Guests          uint32 `json:"guests"`
	CancelledAt     string `json:"cancelled_at"`
}
