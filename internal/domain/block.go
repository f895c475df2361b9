package domain

import (
	"time"

	"github.com/google/uuid"
)

// BlockRelation is a directed veto: UserID blocks BlockedUserID. A
// block in either direction prevents future direct sends between the
// pair; it never touches existing history.
type BlockRelation struct {
	UserID        uuid.UUID `json:"user_id"`
	BlockedUserID uuid.UUID `json:"blocked_user_id"`
	CreatedAt     time.Time `json:"created_at"`
}
