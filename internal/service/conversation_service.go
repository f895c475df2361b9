package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
	"github.com/creatorsgardenofficial/garden-messaging/internal/repository"
)

var (
	ErrInvalidParticipant   = errors.New("cannot start a conversation with yourself")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("you are not a participant of this conversation")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotMessageSender     = errors.New("only the message sender can perform this action")
	ErrEmptyContent         = errors.New("message content is required")

	// ErrBlocked is deliberately vague: callers must not reveal which
	// side blocked whom.
	ErrBlocked = errors.New("messaging is not available between these users")
)

type ConversationService struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	userRepo  repository.UserDirectory
	blockRepo repository.BlockRepository
	readState repository.ReadStateCache
}

// NewConversationService wires the direct-messaging core. readState
// may be nil; unread counts then always hit the repository.
func NewConversationService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserDirectory,
	blockRepo repository.BlockRepository,
	readState repository.ReadStateCache,
) *ConversationService {
	return &ConversationService{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		userRepo:  userRepo,
		blockRepo: blockRepo,
		readState: readState,
	}
}

// ResolveResult is what opening a chat panel gets back: either the
// persisted conversation or a prospective handle for a pair that has
// never exchanged a message.
type ResolveResult struct {
	Ref          domain.ConversationRef
	Conversation *domain.Conversation
	OtherUser    domain.UserSummary
}

// Resolve finds the single canonical conversation between two users.
// It never creates one: persistence happens at first send, so users
// who open a panel and walk away leave nothing behind.
func (s *ConversationService) Resolve(ctx context.Context, requesterID, otherID uuid.UUID) (*ResolveResult, error) {
	if requesterID == otherID {
		return nil, ErrInvalidParticipant
	}

	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	if err := s.checkBlocked(ctx, requesterID, otherID); err != nil {
		return nil, err
	}

	userA, userB := domain.CanonicalPair(requesterID, otherID)
	conv, err := s.convRepo.GetByPair(ctx, userA, userB)
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{OtherUser: other.Summary()}
	if conv != nil {
		result.Ref = domain.PersistedRef(conv.ID)
		result.Conversation = conv
	} else {
		result.Ref = domain.ProspectiveRef(requesterID, otherID)
	}
	return result, nil
}

// SendMessage appends a direct message. A prospective ref is upgraded
// here: the conversation and its first message are persisted in one
// transaction, and a lost creation race collapses onto the winner's
// conversation.
func (s *ConversationService) SendMessage(ctx context.Context, senderID uuid.UUID, ref domain.ConversationRef, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	var receiverID uuid.UUID
	if ref.Persisted() {
		conv, err := s.convRepo.GetByID(ctx, ref.ID())
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, ErrConversationNotFound
		}
		if !conv.HasParticipant(senderID) {
			return nil, ErrNotParticipant
		}
		receiverID = conv.Other(senderID)
	} else {
		userA, userB := ref.Pair()
		switch senderID {
		case userA:
			receiverID = userB
		case userB:
			receiverID = userA
		default:
			return nil, ErrNotParticipant
		}
		if receiverID == senderID {
			return nil, ErrInvalidParticipant
		}
		receiver, err := s.userRepo.GetByID(ctx, receiverID)
		if err != nil {
			return nil, err
		}
		if receiver == nil {
			return nil, ErrUserNotFound
		}
	}

	if err := s.checkBlocked(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Read:       false,
		CreatedAt:  now,
	}

	if ref.Persisted() {
		msg.ConversationID = ref.ID()
		if err := s.msgRepo.Create(ctx, msg); err != nil {
			return nil, fmt.Errorf("creating message: %w", err)
		}
	} else {
		userA, userB := ref.Pair()
		conv := &domain.Conversation{
			ID:        uuid.New(),
			UserAID:   userA,
			UserBID:   userB,
			CreatedAt: now,
		}
		if err := s.convRepo.CreateWithFirstMessage(ctx, conv, msg); err != nil {
			return nil, fmt.Errorf("materializing conversation: %w", err)
		}
	}

	// Stale cache entries only delay the badge by one poll; never
	// fail the send over them.
	if s.readState != nil {
		_ = s.readState.Invalidate(ctx, receiverID, msg.ConversationID)
	}

	full, err := s.msgRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return msg, nil
	}
	return full, nil
}

// ListConversations returns the caller's conversation listing, newest
// activity first. Conversations with users the caller has blocked are
// hidden from the caller (they stay in storage and in the other
// side's listing).
func (s *ConversationService) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	blockedIDs, err := s.blockRepo.ListBlockedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	blocked := make(map[uuid.UUID]struct{}, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = struct{}{}
	}

	summaries, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		if _, hidden := blocked[summary.OtherUser.ID]; hidden {
			continue
		}
		count, err := s.unreadCount(ctx, userID, summary.Conversation.ID)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = count
		out = append(out, summary)
	}
	return out, nil
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// ListMessages returns paginated messages, oldest first.
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, before *uuid.UUID, limit int) (*MessageListResponse, error) {
	if err := s.checkParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.msgRepo.ListByConversation(ctx, conversationID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &MessageListResponse{Messages: messages, HasMore: hasMore}, nil
}

// EditMessage replaces a message's content. Sender-only; no edit
// history is kept.
func (s *ConversationService) EditMessage(ctx context.Context, userID, messageID uuid.UUID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageSender
	}

	msg.Content = content
	if err := s.msgRepo.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	return s.msgRepo.GetByID(ctx, messageID)
}

// DeleteMessage removes a message for good. Sender-only.
func (s *ConversationService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return ErrNotMessageSender
	}

	if err := s.msgRepo.Delete(ctx, messageID); err != nil {
		return err
	}

	if s.readState != nil {
		_ = s.readState.Invalidate(ctx, msg.ReceiverID, msg.ConversationID)
	}
	return nil
}

// MarkRead flips every message addressed to userID in the
// conversation to read.
func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) error {
	if err := s.checkParticipant(ctx, userID, conversationID); err != nil {
		return err
	}

	if err := s.msgRepo.MarkConversationRead(ctx, conversationID, userID); err != nil {
		return err
	}

	if s.readState != nil {
		_ = s.readState.Invalidate(ctx, userID, conversationID)
	}
	return nil
}

func (s *ConversationService) checkParticipant(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}

// checkBlocked vetoes the pair if either side blocks the other.
func (s *ConversationService) checkBlocked(ctx context.Context, userID, otherID uuid.UUID) error {
	blocked, err := s.blockRepo.Exists(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if !blocked {
		blocked, err = s.blockRepo.Exists(ctx, otherID, userID)
		if err != nil {
			return err
		}
	}
	if blocked {
		return ErrBlocked
	}
	return nil
}

func (s *ConversationService) unreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int, error) {
	if s.readState != nil {
		if count, ok, err := s.readState.GetUnread(ctx, userID, conversationID); err == nil && ok {
			return count, nil
		}
	}
	count, err := s.msgRepo.CountUnread(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if s.readState != nil {
		_ = s.readState.SetUnread(ctx, userID, conversationID, count)
	}
	return count, nil
}
