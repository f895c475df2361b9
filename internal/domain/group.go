package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupChat is a multi-party thread with a mutable participant set.
// Every participant has equal rights; there is no admin role. A group
// whose last participant leaves is kept addressable for history
// readers, it just has no active writer.
type GroupChat struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Description    *string     `json:"description,omitempty"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	LastMessageAt  *time.Time  `json:"last_message_at,omitempty"`
}

func (g *GroupChat) HasParticipant(userID uuid.UUID) bool {
	for _, id := range g.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupMessage belongs to exactly one GroupChat. ReadBy always
// contains the sender from creation on, which is what keeps a user's
// own messages out of their unread count. SenderUsername is
// denormalized so listings render without a directory round-trip.
type GroupMessage struct {
	ID             uuid.UUID   `json:"id"`
	GroupChatID    uuid.UUID   `json:"group_chat_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	SenderUsername string      `json:"sender_username"`
	Content        string      `json:"content"`
	ReadBy         []uuid.UUID `json:"read_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      *time.Time  `json:"updated_at,omitempty"`
}

func (m *GroupMessage) ReadByUser(userID uuid.UUID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupSummary is a listing row for one group the user belongs to.
type GroupSummary struct {
	GroupChat
	Participants []UserSummary `json:"participants"`
	LastMessage  *GroupMessage `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
}
