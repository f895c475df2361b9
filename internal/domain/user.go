package domain

import (
	"time"

	"github.com/google/uuid"
)

// User statuses as reported by the account system. Messaging only
// cares whether the acting user is still active.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// User is a read-only projection of the account system's user record.
// Accounts are created and managed elsewhere; messaging never writes
// this entity.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	PublicID    *string   `json:"public_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		PublicID:    u.PublicID,
	}
}

// UserSummary is the directory shape exposed to clients (listing rows,
// group participant lists, sender attribution).
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	PublicID    *string   `json:"public_id,omitempty"`
}
