package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the durable pairwise thread between exactly two
// users. UserAID sorts before UserBID (canonical order) so the pair is
// unique regardless of which side initiated it.
type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	UserAID       uuid.UUID  `json:"user_a_id"`
	UserBID       uuid.UUID  `json:"user_b_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// Other returns the participant opposite to userID.
func (c *Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// CanonicalPair sorts two user ids into canonical storage order. The
// string order of uuids matches their byte order, so this agrees with
// the database's uuid comparison.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// ConversationRef points at a conversation that is either already
// persisted or still prospective: the pair opened a chat panel but has
// never exchanged a message, so nothing is stored yet. A prospective
// ref is upgraded to a persisted one only by the first successful
// send.
type ConversationRef struct {
	id    uuid.UUID
	userA uuid.UUID
	userB uuid.UUID
}

func PersistedRef(id uuid.UUID) ConversationRef {
	return ConversationRef{id: id}
}

func ProspectiveRef(a, b uuid.UUID) ConversationRef {
	a, b = CanonicalPair(a, b)
	return ConversationRef{userA: a, userB: b}
}

func (r ConversationRef) Persisted() bool {
	return r.id != uuid.Nil
}

func (r ConversationRef) ID() uuid.UUID {
	return r.id
}

// Pair returns the canonical participant pair of a prospective ref.
func (r ConversationRef) Pair() (uuid.UUID, uuid.UUID) {
	return r.userA, r.userB
}

// Message is a direct message inside a Conversation. SenderID is
// immutable; Read flips only through the receiver's mark-read path.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	ReceiverID     uuid.UUID  `json:"receiver_id"`
	Content        string     `json:"content"`
	Read           bool       `json:"read"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	// Joined fields for display
	SenderUsername    string `json:"sender_username,omitempty"`
	SenderDisplayName string `json:"sender_display_name,omitempty"`
}

// ConversationSummary is a listing row: one conversation seen from one
// participant's side.
type ConversationSummary struct {
	Conversation
	OtherUser   UserSummary `json:"other_user"`
	LastMessage *Message    `json:"last_message,omitempty"`
	UnreadCount int         `json:"unread_count"`
}
