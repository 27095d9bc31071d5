package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an application user record as stored in the `users`
// table.  The json tags are omitted because these structs are used by
// the repository layer; handlers define separate response types.
//
// Fields:
//  ID            – primary key (UUID).
//  Email         – unique email address.
//  FullName      – display name used in notifications.
//  PasswordHash  – bcrypt hashed password.
//  Role          – closed enumeration (TOURIST, GUIDE, ADMIN).
//  CalendarEmail – external calendar account linked by the user, if
//                  any.  When set, booking events carry a calendar
//                  hint for the consumer.
//  IsActive      – whether the account is active.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uuid.UUID
	Email         string
	FullName      string
	PasswordHash  string
	Role          Role
	CalendarEmail *string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
