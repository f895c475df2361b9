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
	ErrGroupNotFound         = errors.New("group chat not found")
	ErrNotAMember            = errors.New("you are not a participant of this group chat")
	ErrEmptyMembership       = errors.New("no valid members could be resolved")
	ErrEmptyGroupName        = errors.New("group name is required")
	ErrGroupMessageNotFound  = errors.New("group message not found")
	ErrNotGroupMessageSender = errors.New("only the message sender can perform this action")
)

type GroupService struct {
	groupRepo    repository.GroupChatRepository
	groupMsgRepo repository.GroupMessageRepository
	userRepo     repository.UserDirectory
	readState    repository.ReadStateCache
}

func NewGroupService(
	groupRepo repository.GroupChatRepository,
	groupMsgRepo repository.GroupMessageRepository,
	userRepo repository.UserDirectory,
	readState repository.ReadStateCache,
) *GroupService {
	return &GroupService{
		groupRepo:    groupRepo,
		groupMsgRepo: groupMsgRepo,
		userRepo:     userRepo,
		readState:    readState,
	}
}

type CreateGroupInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	MemberPublicIDs []string `json:"member_public_ids"`
}

// Create makes a new group chat. Invitees are resolved by public id
// through the user directory; misses are silently dropped, but at
// least one invitee distinct from the creator must resolve. The
// creator is always a participant.
func (s *GroupService) Create(ctx context.Context, ownerID uuid.UUID, input CreateGroupInput) (*domain.GroupChat, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrEmptyGroupName
	}

	seen := map[uuid.UUID]struct{}{ownerID: {}}
	participants := []uuid.UUID{ownerID}
	for _, publicID := range input.MemberPublicIDs {
		user, err := s.userRepo.GetByPublicID(ctx, publicID)
		if err != nil {
			return nil, fmt.Errorf("resolving member %q: %w", publicID, err)
		}
		if user == nil {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		participants = append(participants, user.ID)
	}
	if len(participants) < 2 {
		return nil, ErrEmptyMembership
	}

	var desc *string
	if input.Description != "" {
		desc = &input.Description
	}

	now := time.Now()
	group := &domain.GroupChat{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		Description:    desc,
		ParticipantIDs: participants,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("creating group chat: %w", err)
	}
	return group, nil
}

func (s *GroupService) GetByID(ctx context.Context, userID, groupID uuid.UUID) (*domain.GroupChat, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if !group.HasParticipant(userID) {
		return nil, ErrNotAMember
	}
	return group, nil
}

// AddParticipant lets any current participant bring someone in.
// Adding a user who is already in the group succeeds without effect.
func (s *GroupService) AddParticipant(ctx context.Context, groupID, requesterID, newMemberID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	if !group.HasParticipant(requesterID) {
		return ErrNotAMember
	}

	member, err := s.userRepo.GetByID(ctx, newMemberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrUserNotFound
	}

	return s.groupRepo.AddMember(ctx, groupID, newMemberID)
}

// Leave removes the requester. Leaving a group you're not in is a
// no-op, and the last participant leaving keeps the group's history
// addressable: it just has nobody left who can write.
func (s *GroupService) Leave(ctx context.Context, groupID, requesterID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	return s.groupRepo.RemoveMember(ctx, groupID, requesterID)
}

// SendMessage appends a group message. The read set starts as just
// the sender, which is what keeps your own messages out of your
// unread badge. Group sends are intentionally not block-checked;
// blocking is a direct-message concept here.
func (s *GroupService) SendMessage(ctx context.Context, groupID, senderID uuid.UUID, content string) (*domain.GroupMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if !group.HasParticipant(senderID) {
		return nil, ErrNotAMember
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	msg := &domain.GroupMessage{
		ID:             uuid.New(),
		GroupChatID:    groupID,
		SenderID:       senderID,
		SenderUsername: sender.Username,
		Content:        content,
		ReadBy:         []uuid.UUID{senderID},
		CreatedAt:      now,
	}

	if err := s.groupMsgRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating group message: %w", err)
	}
	if err := s.groupRepo.Touch(ctx, groupID, now); err != nil {
		return nil, fmt.Errorf("stamping group activity: %w", err)
	}

	if s.readState != nil {
		for _, participantID := range group.ParticipantIDs {
			if participantID == senderID {
				continue
			}
			_ = s.readState.Invalidate(ctx, participantID, groupID)
		}
	}

	return msg, nil
}

// ListGroups returns the caller's group listing with participant
// summaries and unread counts, newest activity first.
func (s *GroupService) ListGroups(ctx context.Context, userID uuid.UUID) ([]domain.GroupSummary, error) {
	summaries, err := s.groupRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.GroupSummary, 0, len(summaries))
	for _, summary := range summaries {
		participants := make([]domain.UserSummary, 0, len(summary.ParticipantIDs))
		for _, participantID := range summary.ParticipantIDs {
			user, err := s.userRepo.GetByID(ctx, participantID)
			if err != nil {
				return nil, err
			}
			if user != nil {
				participants = append(participants, user.Summary())
			}
		}
		summary.Participants = participants

		count, err := s.unreadCount(ctx, userID, summary.GroupChat.ID)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = count
		out = append(out, summary)
	}
	return out, nil
}

type GroupMessageListResponse struct {
	Messages []domain.GroupMessage `json:"messages"`
	HasMore  bool                  `json:"has_more"`
}

func (s *GroupService) ListMessages(ctx context.Context, userID, groupID uuid.UUID, before *uuid.UUID, limit int) (*GroupMessageListResponse, error) {
	if err := s.checkMember(ctx, userID, groupID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.groupMsgRepo.ListByGroup(ctx, groupID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.GroupMessage{}
	}

	return &GroupMessageListResponse{Messages: messages, HasMore: hasMore}, nil
}

func (s *GroupService) EditMessage(ctx context.Context, userID, messageID uuid.UUID, content string) (*domain.GroupMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.groupMsgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrGroupMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotGroupMessageSender
	}

	msg.Content = content
	if err := s.groupMsgRepo.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating group message: %w", err)
	}

	return s.groupMsgRepo.GetByID(ctx, messageID)
}

func (s *GroupService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.groupMsgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrGroupMessageNotFound
	}
	if msg.SenderID != userID {
		return ErrNotGroupMessageSender
	}

	return s.groupMsgRepo.Delete(ctx, messageID)
}

// MarkRead adds userID to the read set of every message in the group
// it hasn't seen yet.
func (s *GroupService) MarkRead(ctx context.Context, groupID, userID uuid.UUID) error {
	if err := s.checkMember(ctx, userID, groupID); err != nil {
		return err
	}

	if err := s.groupMsgRepo.MarkGroupRead(ctx, groupID, userID); err != nil {
		return err
	}

	if s.readState != nil {
		_ = s.readState.Invalidate(ctx, userID, groupID)
	}
	return nil
}

func (s *GroupService) checkMember(ctx context.Context, userID, groupID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	if !group.HasParticipant(userID) {
		return ErrNotAMember
	}
	return nil
}

func (s *GroupService) unreadCount(ctx context.Context, userID, groupID uuid.UUID) (int, error) {
	if s.readState != nil {
		if count, ok, err := s.readState.GetUnread(ctx, userID, groupID); err == nil && ok {
			return count, nil
		}
	}
	count, err := s.groupMsgRepo.CountUnread(ctx, groupID, userID)
	if err != nil {
		return 0, err
	}
	if s.readState != nil {
		_ = s.readState.SetUnread(ctx, userID, groupID, count)
	}
	return count, nil
}
