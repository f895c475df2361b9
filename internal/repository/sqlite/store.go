package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
)

// Store owns the sqlite connection for single-node deployments that
// don't want to run postgres. Per-entity repositories hang off it and
// share the same *gorm.DB.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	err = db.AutoMigrate(
		&User{},
		&Conversation{},
		&Message{},
		&GroupChat{},
		&GroupMember{},
		&GroupMessage{},
		&GroupMessageRead{},
		&BlockRelation{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Users() *UserStore                 { return &UserStore{db: s.db} }
func (s *Store) Conversations() *ConversationStore { return &ConversationStore{db: s.db} }
func (s *Store) Messages() *MessageStore           { return &MessageStore{db: s.db} }
func (s *Store) Groups() *GroupStore               { return &GroupStore{db: s.db} }
func (s *Store) GroupMessages() *GroupMessageStore { return &GroupMessageStore{db: s.db} }
func (s *Store) Blocks() *BlockStore               { return &BlockStore{db: s.db} }

// ---- UserDirectory ----

type UserStore struct {
	db *gorm.DB
}

func (r *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return userToDomain(&user)
}

func (r *UserStore) GetByPublicID(ctx context.Context, publicID string) (*domain.User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, "public_id = ?", publicID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return userToDomain(&user)
}

func (r *UserStore) SearchByUsername(ctx context.Context, query string, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var users []User
	err := r.db.WithContext(ctx).
		Where("username LIKE ?", query+"%").
		Order("username").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.User, 0, len(users))
	for i := range users {
		u, err := userToDomain(&users[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

// ---- ConversationRepository ----

type ConversationStore struct {
	db *gorm.DB
}

func (r *ConversationStore) CreateWithFirstMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := Conversation{
			ID:        conv.ID.String(),
			UserAID:   conv.UserAID.String(),
			UserBID:   conv.UserBID.String(),
			CreatedAt: conv.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}

		// Re-read the pair: on a lost race the surviving row is the
		// concurrent sender's.
		var surviving Conversation
		if err := tx.First(&surviving, "user_a_id = ? AND user_b_id = ?", row.UserAID, row.UserBID).Error; err != nil {
			return err
		}
		survivingID, err := uuid.Parse(surviving.ID)
		if err != nil {
			return err
		}
		conv.ID = survivingID
		msg.ConversationID = survivingID

		msgRow := Message{
			ID:             msg.ID.String(),
			ConversationID: surviving.ID,
			SenderID:       msg.SenderID.String(),
			ReceiverID:     msg.ReceiverID.String(),
			Content:        msg.Content,
			Read:           msg.Read,
			CreatedAt:      msg.CreatedAt,
		}
		if err := tx.Create(&msgRow).Error; err != nil {
			return err
		}

		return tx.Model(&Conversation{}).
			Where("id = ?", surviving.ID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

func (r *ConversationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).First(&conv, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conversationToDomain(&conv)
}

func (r *ConversationStore) GetByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).
		First(&conv, "user_a_id = ? AND user_b_id = ?", userA.String(), userB.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conversationToDomain(&conv)
}

func (r *ConversationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	var convs []Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID.String(), userID.String()).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	var summaries []domain.ConversationSummary
	for i := range convs {
		conv, err := conversationToDomain(&convs[i])
		if err != nil {
			return nil, err
		}
		summary := domain.ConversationSummary{Conversation: *conv}

		var other User
		err = r.db.WithContext(ctx).First(&other, "id = ?", conv.Other(userID).String()).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			u, err := userToDomain(&other)
			if err != nil {
				return nil, err
			}
			summary.OtherUser = u.Summary()
		}

		var last Message
		err = r.db.WithContext(ctx).
			Where("conversation_id = ?", convs[i].ID).
			Order("created_at DESC").
			First(&last).Error
		if err == nil {
			msg, err := messageToDomain(&last)
			if err != nil {
				return nil, err
			}
			summary.LastMessage = msg
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ---- MessageRepository ----

type MessageStore struct {
	db *gorm.DB
}

func (r *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := Message{
			ID:             msg.ID.String(),
			ConversationID: msg.ConversationID.String(),
			SenderID:       msg.SenderID.String(),
			ReceiverID:     msg.ReceiverID.String(),
			Content:        msg.Content,
			Read:           msg.Read,
			CreatedAt:      msg.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", row.ConversationID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

func (r *MessageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var msg Message
	err := r.db.WithContext(ctx).First(&msg, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return messageToDomain(&msg)
}

func (r *MessageStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID.String())
	if before != nil {
		q = q.Where("created_at < (SELECT created_at FROM messages WHERE id = ?)", before.String())
	}

	var rows []Message
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msg, err := messageToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}

func (r *MessageStore) Update(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", msg.ID.String()).
		Updates(map[string]any{"content": msg.Content, "updated_at": time.Now()}).Error
}

func (r *MessageStore) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&Message{}, "id = ?", id.String()).Error
}

func (r *MessageStore) MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID.String(), receiverID.String(), false).
		Update("read", true).Error
}

func (r *MessageStore) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID.String(), userID.String(), false).
		Count(&count).Error
	return int(count), err
}

// ---- GroupChatRepository ----

type GroupStore struct {
	db *gorm.DB
}

func (r *GroupStore) Create(ctx context.Context, group *domain.GroupChat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := GroupChat{
			ID:          group.ID.String(),
			Name:        group.Name,
			Description: group.Description,
			CreatedAt:   group.CreatedAt,
			UpdatedAt:   group.UpdatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, userID := range group.ParticipantIDs {
			member := GroupMember{
				GroupChatID: row.ID,
				UserID:      userID.String(),
				JoinedAt:    group.CreatedAt,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GroupStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupChat, error) {
	var group GroupChat
	err := r.db.WithContext(ctx).First(&group, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return groupToDomain(ctx, r.db, &group)
}

func (r *GroupStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.GroupSummary, error) {
	var groups []GroupChat
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_chat_id = group_chats.id").
		Where("group_members.user_id = ?", userID.String()).
		Order("COALESCE(group_chats.last_message_at, group_chats.created_at) DESC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	var summaries []domain.GroupSummary
	for i := range groups {
		g, err := groupToDomain(ctx, r.db, &groups[i])
		if err != nil {
			return nil, err
		}
		summary := domain.GroupSummary{GroupChat: *g}

		var last GroupMessage
		err = r.db.WithContext(ctx).
			Where("group_chat_id = ?", groups[i].ID).
			Order("created_at DESC").
			First(&last).Error
		if err == nil {
			msg, err := groupMessageToDomain(ctx, r.db, &last)
			if err != nil {
				return nil, err
			}
			summary.LastMessage = msg
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *GroupStore) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	member := GroupMember{
		GroupChatID: groupID.String(),
		UserID:      userID.String(),
		JoinedAt:    time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

func (r *GroupStore) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&GroupMember{}, "group_chat_id = ? AND user_id = ?", groupID.String(), userID.String()).Error
}

func (r *GroupStore) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&GroupMember{}).
		Where("group_chat_id = ? AND user_id = ?", groupID.String(), userID.String()).
		Count(&count).Error
	return count > 0, err
}

func (r *GroupStore) Touch(ctx context.Context, groupID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&GroupChat{}).
		Where("id = ?", groupID.String()).
		Updates(map[string]any{"last_message_at": at, "updated_at": at}).Error
}

// ---- GroupMessageRepository ----

type GroupMessageStore struct {
	db *gorm.DB
}

func (r *GroupMessageStore) Create(ctx context.Context, msg *domain.GroupMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := GroupMessage{
			ID:             msg.ID.String(),
			GroupChatID:    msg.GroupChatID.String(),
			SenderID:       msg.SenderID.String(),
			SenderUsername: msg.SenderUsername,
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, userID := range msg.ReadBy {
			read := GroupMessageRead{GroupMessageID: row.ID, UserID: userID.String()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&read).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GroupMessageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupMessage, error) {
	var msg GroupMessage
	err := r.db.WithContext(ctx).First(&msg, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return groupMessageToDomain(ctx, r.db, &msg)
}

func (r *GroupMessageStore) ListByGroup(ctx context.Context, groupID uuid.UUID, before *uuid.UUID, limit int) ([]domain.GroupMessage, error) {
	q := r.db.WithContext(ctx).
		Where("group_chat_id = ?", groupID.String())
	if before != nil {
		q = q.Where("created_at < (SELECT created_at FROM group_messages WHERE id = ?)", before.String())
	}

	var rows []GroupMessage
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	messages := make([]domain.GroupMessage, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msg, err := groupMessageToDomain(ctx, r.db, &rows[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}

func (r *GroupMessageStore) Update(ctx context.Context, msg *domain.GroupMessage) error {
	return r.db.WithContext(ctx).Model(&GroupMessage{}).
		Where("id = ?", msg.ID.String()).
		Updates(map[string]any{"content": msg.Content, "updated_at": time.Now()}).Error
}

func (r *GroupMessageStore) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&GroupMessageRead{}, "group_message_id = ?", id.String()).Error; err != nil {
			return err
		}
		return tx.Delete(&GroupMessage{}, "id = ?", id.String()).Error
	})
}

func (r *GroupMessageStore) MarkGroupRead(ctx context.Context, groupID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT OR IGNORE INTO group_message_reads (group_message_id, user_id)
		SELECT id, ? FROM group_messages WHERE group_chat_id = ?`,
		userID.String(), groupID.String(),
	).Error
}

func (r *GroupMessageStore) CountUnread(ctx context.Context, groupID, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&GroupMessage{}).
		Where("group_chat_id = ?", groupID.String()).
		Where("id NOT IN (SELECT group_message_id FROM group_message_reads WHERE user_id = ?)", userID.String()).
		Count(&count).Error
	return int(count), err
}

// ---- BlockRepository ----

type BlockStore struct {
	db *gorm.DB
}

func (r *BlockStore) Create(ctx context.Context, rel *domain.BlockRelation) error {
	row := BlockRelation{
		UserID:        rel.UserID.String(),
		BlockedUserID: rel.BlockedUserID.String(),
		CreatedAt:     rel.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *BlockStore) Delete(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&BlockRelation{}, "user_id = ? AND blocked_user_id = ?", blockerID.String(), blockedID.String()).Error
}

func (r *BlockStore) Exists(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&BlockRelation{}).
		Where("user_id = ? AND blocked_user_id = ?", blockerID.String(), blockedID.String()).
		Count(&count).Error
	return count > 0, err
}

func (r *BlockStore) ListBlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	var rows []BlockRelation
	err := r.db.WithContext(ctx).Find(&rows, "user_id = ?", blockerID.String()).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.BlockedUserID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *BlockStore) List(ctx context.Context, blockerID uuid.UUID) ([]domain.BlockRelation, error) {
	var rows []BlockRelation
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows, "user_id = ?", blockerID.String()).Error
	if err != nil {
		return nil, err
	}
	rels := make([]domain.BlockRelation, 0, len(rows))
	for _, row := range rows {
		rel, err := blockToDomain(&row)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *rel)
	}
	return rels, nil
}

// ---- converters ----

func userToDomain(u *User) (*domain.User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:          id,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		PublicID:    u.PublicID,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt,
	}, nil
}

func conversationToDomain(c *Conversation) (*domain.Conversation, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, err
	}
	userA, err := uuid.Parse(c.UserAID)
	if err != nil {
		return nil, err
	}
	userB, err := uuid.Parse(c.UserBID)
	if err != nil {
		return nil, err
	}
	return &domain.Conversation{
		ID:            id,
		UserAID:       userA,
		UserBID:       userB,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
	}, nil
}

func messageToDomain(m *Message) (*domain.Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	convID, err := uuid.Parse(m.ConversationID)
	if err != nil {
		return nil, err
	}
	senderID, err := uuid.Parse(m.SenderID)
	if err != nil {
		return nil, err
	}
	receiverID, err := uuid.Parse(m.ReceiverID)
	if err != nil {
		return nil, err
	}
	return &domain.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        m.Content,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func groupToDomain(ctx context.Context, db *gorm.DB, g *GroupChat) (*domain.GroupChat, error) {
	id, err := uuid.Parse(g.ID)
	if err != nil {
		return nil, err
	}

	var members []GroupMember
	if err := db.WithContext(ctx).Find(&members, "group_chat_id = ?", g.ID).Error; err != nil {
		return nil, err
	}
	participantIDs := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		userID, err := uuid.Parse(m.UserID)
		if err != nil {
			return nil, err
		}
		participantIDs = append(participantIDs, userID)
	}

	return &domain.GroupChat{
		ID:             id,
		Name:           g.Name,
		Description:    g.Description,
		ParticipantIDs: participantIDs,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
		LastMessageAt:  g.LastMessageAt,
	}, nil
}

func groupMessageToDomain(ctx context.Context, db *gorm.DB, m *GroupMessage) (*domain.GroupMessage, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	groupID, err := uuid.Parse(m.GroupChatID)
	if err != nil {
		return nil, err
	}
	senderID, err := uuid.Parse(m.SenderID)
	if err != nil {
		return nil, err
	}

	var reads []GroupMessageRead
	if err := db.WithContext(ctx).Find(&reads, "group_message_id = ?", m.ID).Error; err != nil {
		return nil, err
	}
	readBy := make([]uuid.UUID, 0, len(reads))
	for _, read := range reads {
		userID, err := uuid.Parse(read.UserID)
		if err != nil {
			return nil, err
		}
		readBy = append(readBy, userID)
	}

	return &domain.GroupMessage{
		ID:             id,
		GroupChatID:    groupID,
		SenderID:       senderID,
		SenderUsername: m.SenderUsername,
		Content:        m.Content,
		ReadBy:         readBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func blockToDomain(b *BlockRelation) (*domain.BlockRelation, error) {
	userID, err := uuid.Parse(b.UserID)
	if err != nil {
		return nil, err
	}
	blockedID, err := uuid.Parse(b.BlockedUserID)
	if err != nil {
		return nil, err
	}
	return &domain.BlockRelation{
		UserID:        userID,
		BlockedUserID: blockedID,
		CreatedAt:     b.CreatedAt,
	}, nil
}
