package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
)

// UserDirectory is the read-only view of the account system's user
// table. Messaging resolves identities through it and never writes.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByPublicID(ctx context.Context, publicID string) (*domain.User, error)
	SearchByUsername(ctx context.Context, query string, limit int) ([]domain.User, error)
}

type ConversationRepository interface {
	// CreateWithFirstMessage persists a prospective conversation and
	// its first message atomically. If the canonical pair was created
	// concurrently, the existing conversation wins, the message lands
	// in it, and conv.ID is overwritten with the surviving id.
	CreateWithFirstMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	// ListByUser returns summaries ordered by last_message_at desc
	// (created_at fallback). UnreadCount is left zero; the service
	// fills it through the read-state cache.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error)
}

type MessageRepository interface {
	// Create appends the message and stamps the conversation's
	// last_message_at in the same transaction.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) error
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
}

type GroupChatRepository interface {
	// Create persists the group together with its initial participant
	// set.
	Create(ctx context.Context, group *domain.GroupChat) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupChat, error)
	// ListByUser returns summaries for groups the user belongs to,
	// same ordering rule as conversations. Participants and
	// UnreadCount are filled by the service.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.GroupSummary, error)
	// AddMember is idempotent: adding a present member is a no-op.
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	Touch(ctx context.Context, groupID uuid.UUID, at time.Time) error
}

type GroupMessageRepository interface {
	Create(ctx context.Context, msg *domain.GroupMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupMessage, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, before *uuid.UUID, limit int) ([]domain.GroupMessage, error)
	Update(ctx context.Context, msg *domain.GroupMessage) error
	Delete(ctx context.Context, id uuid.UUID) error
	// MarkGroupRead appends userID to read_by on every message of the
	// group that doesn't carry it yet.
	MarkGroupRead(ctx context.Context, groupID, userID uuid.UUID) error
	CountUnread(ctx context.Context, groupID, userID uuid.UUID) (int, error)
}

type BlockRepository interface {
	// Create is idempotent: blocking twice is a no-op.
	Create(ctx context.Context, rel *domain.BlockRelation) error
	Delete(ctx context.Context, blockerID, blockedID uuid.UUID) error
	Exists(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error)
	ListBlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error)
	List(ctx context.Context, blockerID uuid.UUID) ([]domain.BlockRelation, error)
}

// ReadStateCache holds per-(user, thread) unread counts so the polling
// listings don't recount on every tick. A miss falls back to the
// repository count.
type ReadStateCache interface {
	GetUnread(ctx context.Context, userID, threadID uuid.UUID) (int, bool, error)
	SetUnread(ctx context.Context, userID, threadID uuid.UUID, count int) error
	Invalidate(ctx context.Context, userID uuid.UUID, threadIDs ...uuid.UUID) error
}
