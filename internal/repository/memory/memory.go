// Package memory holds a map-backed implementation of the repository
// interfaces. It backs the unit tests and is handy for demos; it keeps
// the same atomicity guarantees as the database backends (a single
// mutex covers every read-modify-write).
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
)

type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]domain.User
	conversations map[uuid.UUID]domain.Conversation
	messages      map[uuid.UUID]domain.Message
	groups        map[uuid.UUID]domain.GroupChat
	groupMessages map[uuid.UUID]domain.GroupMessage
	blocks        map[[2]uuid.UUID]domain.BlockRelation
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]domain.User),
		conversations: make(map[uuid.UUID]domain.Conversation),
		messages:      make(map[uuid.UUID]domain.Message),
		groups:        make(map[uuid.UUID]domain.GroupChat),
		groupMessages: make(map[uuid.UUID]domain.GroupMessage),
		blocks:        make(map[[2]uuid.UUID]domain.BlockRelation),
	}
}

// AddUser seeds a directory entry.
func (s *Store) AddUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *Store) Users() *UserDirectory           { return &UserDirectory{s: s} }
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s: s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s: s} }
func (s *Store) Groups() *GroupRepo               { return &GroupRepo{s: s} }
func (s *Store) GroupMessages() *GroupMessageRepo { return &GroupMessageRepo{s: s} }
func (s *Store) Blocks() *BlockRepo               { return &BlockRepo{s: s} }

// ---- UserDirectory ----

type UserDirectory struct {
	s *Store
}

func (r *UserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user, ok := r.s.users[id]; ok {
		u := user
		return &u, nil
	}
	return nil, nil
}

func (r *UserDirectory) GetByPublicID(ctx context.Context, publicID string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.PublicID != nil && *user.PublicID == publicID {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserDirectory) SearchByUsername(ctx context.Context, query string, limit int) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var out []domain.User
	for _, user := range r.s.users {
		if strings.HasPrefix(strings.ToLower(user.Username), strings.ToLower(query)) {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- ConversationRepository ----

type ConversationRepo struct {
	s *Store
}

func (r *ConversationRepo) CreateWithFirstMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Collapse onto an existing conversation for the same pair, same
	// as the database unique index does.
	for _, existing := range r.s.conversations {
		if existing.UserAID == conv.UserAID && existing.UserBID == conv.UserBID {
			conv.ID = existing.ID
			break
		}
	}
	if _, ok := r.s.conversations[conv.ID]; !ok {
		r.s.conversations[conv.ID] = *conv
	}

	msg.ConversationID = conv.ID
	r.s.messages[msg.ID] = *msg

	stored := r.s.conversations[conv.ID]
	at := msg.CreatedAt
	stored.LastMessageAt = &at
	r.s.conversations[conv.ID] = stored
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv, ok := r.s.conversations[id]; ok {
		c := conv
		return &c, nil
	}
	return nil, nil
}

func (r *ConversationRepo) GetByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, conv := range r.s.conversations {
		if conv.UserAID == userA && conv.UserBID == userB {
			c := conv
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var summaries []domain.ConversationSummary
	for _, conv := range r.s.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		summary := domain.ConversationSummary{Conversation: conv}
		if other, ok := r.s.users[conv.Other(userID)]; ok {
			summary.OtherUser = other.Summary()
		}
		if last := r.s.lastMessageLocked(conv.ID); last != nil {
			summary.LastMessage = last
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return activityTime(summaries[i].Conversation).After(activityTime(summaries[j].Conversation))
	})
	return summaries, nil
}

func (s *Store) lastMessageLocked(conversationID uuid.UUID) *domain.Message {
	var last *domain.Message
	for _, msg := range s.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		if last == nil || msg.CreatedAt.After(last.CreatedAt) {
			m := msg
			last = &m
		}
	}
	return last
}

func activityTime(c domain.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// ---- MessageRepository ----

type MessageRepo struct {
	s *Store
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages[msg.ID] = *msg
	if conv, ok := r.s.conversations[msg.ConversationID]; ok {
		at := msg.CreatedAt
		conv.LastMessageAt = &at
		r.s.conversations[msg.ConversationID] = conv
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg, ok := r.s.messages[id]; ok {
		m := msg
		return &m, nil
	}
	return nil, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var cutoff *time.Time
	if before != nil {
		if msg, ok := r.s.messages[*before]; ok {
			cutoff = &msg.CreatedAt
		}
	}

	var out []domain.Message
	for _, msg := range r.s.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		if cutoff != nil && !msg.CreatedAt.Before(*cutoff) {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.messages[msg.ID]
	if !ok {
		return nil
	}
	now := time.Now()
	stored.Content = msg.Content
	stored.UpdatedAt = &now
	r.s.messages[msg.ID] = stored
	return nil
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.messages, id)
	return nil
}

func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, msg := range r.s.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == receiverID && !msg.Read {
			msg.Read = true
			r.s.messages[id] = msg
		}
	}
	return nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, msg := range r.s.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == userID && !msg.Read {
			count++
		}
	}
	return count, nil
}

// ---- GroupChatRepository ----

type GroupRepo struct {
	s *Store
}

func (r *GroupRepo) Create(ctx context.Context, group *domain.GroupChat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *group
	stored.ParticipantIDs = dedupe(group.ParticipantIDs)
	r.s.groups[group.ID] = stored
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupChat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if group, ok := r.s.groups[id]; ok {
		g := group
		g.ParticipantIDs = append([]uuid.UUID(nil), group.ParticipantIDs...)
		return &g, nil
	}
	return nil, nil
}

func (r *GroupRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.GroupSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var summaries []domain.GroupSummary
	for _, group := range r.s.groups {
		if !group.HasParticipant(userID) {
			continue
		}
		summary := domain.GroupSummary{GroupChat: group}
		if last := r.s.lastGroupMessageLocked(group.ID); last != nil {
			summary.LastMessage = last
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return groupActivityTime(summaries[i].GroupChat).After(groupActivityTime(summaries[j].GroupChat))
	})
	return summaries, nil
}

func (s *Store) lastGroupMessageLocked(groupID uuid.UUID) *domain.GroupMessage {
	var last *domain.GroupMessage
	for _, msg := range s.groupMessages {
		if msg.GroupChatID != groupID {
			continue
		}
		if last == nil || msg.CreatedAt.After(last.CreatedAt) {
			m := msg
			last = &m
		}
	}
	return last
}

func groupActivityTime(g domain.GroupChat) time.Time {
	if g.LastMessageAt != nil {
		return *g.LastMessageAt
	}
	return g.CreatedAt
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	group, ok := r.s.groups[groupID]
	if !ok {
		return nil
	}
	if !group.HasParticipant(userID) {
		group.ParticipantIDs = append(group.ParticipantIDs, userID)
		r.s.groups[groupID] = group
	}
	return nil
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	group, ok := r.s.groups[groupID]
	if !ok {
		return nil
	}
	filtered := group.ParticipantIDs[:0]
	for _, id := range group.ParticipantIDs {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	group.ParticipantIDs = filtered
	r.s.groups[groupID] = group
	return nil
}

func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	group, ok := r.s.groups[groupID]
	if !ok {
		return false, nil
	}
	return group.HasParticipant(userID), nil
}

func (r *GroupRepo) Touch(ctx context.Context, groupID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if group, ok := r.s.groups[groupID]; ok {
		group.LastMessageAt = &at
		group.UpdatedAt = at
		r.s.groups[groupID] = group
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ---- GroupMessageRepository ----

type GroupMessageRepo struct {
	s *Store
}

func (r *GroupMessageRepo) Create(ctx context.Context, msg *domain.GroupMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *msg
	stored.ReadBy = append([]uuid.UUID(nil), msg.ReadBy...)
	r.s.groupMessages[msg.ID] = stored
	return nil
}

func (r *GroupMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg, ok := r.s.groupMessages[id]; ok {
		m := msg
		m.ReadBy = append([]uuid.UUID(nil), msg.ReadBy...)
		return &m, nil
	}
	return nil, nil
}

func (r *GroupMessageRepo) ListByGroup(ctx context.Context, groupID uuid.UUID, before *uuid.UUID, limit int) ([]domain.GroupMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var cutoff *time.Time
	if before != nil {
		if msg, ok := r.s.groupMessages[*before]; ok {
			cutoff = &msg.CreatedAt
		}
	}

	var out []domain.GroupMessage
	for _, msg := range r.s.groupMessages {
		if msg.GroupChatID != groupID {
			continue
		}
		if cutoff != nil && !msg.CreatedAt.Before(*cutoff) {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *GroupMessageRepo) Update(ctx context.Context, msg *domain.GroupMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.groupMessages[msg.ID]
	if !ok {
		return nil
	}
	now := time.Now()
	stored.Content = msg.Content
	stored.UpdatedAt = &now
	r.s.groupMessages[msg.ID] = stored
	return nil
}

func (r *GroupMessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.groupMessages, id)
	return nil
}

func (r *GroupMessageRepo) MarkGroupRead(ctx context.Context, groupID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, msg := range r.s.groupMessages {
		if msg.GroupChatID != groupID || msg.ReadByUser(userID) {
			continue
		}
		msg.ReadBy = append(append([]uuid.UUID(nil), msg.ReadBy...), userID)
		r.s.groupMessages[id] = msg
	}
	return nil
}

func (r *GroupMessageRepo) CountUnread(ctx context.Context, groupID, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, msg := range r.s.groupMessages {
		if msg.GroupChatID == groupID && !msg.ReadByUser(userID) {
			count++
		}
	}
	return count, nil
}

// ---- BlockRepository ----

type BlockRepo struct {
	s *Store
}

func (r *BlockRepo) Create(ctx context.Context, rel *domain.BlockRelation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uuid.UUID{rel.UserID, rel.BlockedUserID}
	if _, ok := r.s.blocks[key]; !ok {
		r.s.blocks[key] = *rel
	}
	return nil
}

func (r *BlockRepo) Delete(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.blocks, [2]uuid.UUID{blockerID, blockedID})
	return nil
}

func (r *BlockRepo) Exists(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.blocks[[2]uuid.UUID{blockerID, blockedID}]
	return ok, nil
}

func (r *BlockRepo) ListBlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for key := range r.s.blocks {
		if key[0] == blockerID {
			ids = append(ids, key[1])
		}
	}
	return ids, nil
}

func (r *BlockRepo) List(ctx context.Context, blockerID uuid.UUID) ([]domain.BlockRelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rels []domain.BlockRelation
	for key, rel := range r.s.blocks {
		if key[0] == blockerID {
			rels = append(rels, rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].CreatedAt.After(rels[j].CreatedAt) })
	return rels, nil
}
