package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

func (r *GroupRepo) Create(ctx context.Context, group *domain.GroupChat) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO group_chats (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		group.ID, group.Name, group.Description, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, userID := range group.ParticipantIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO group_members (group_chat_id, user_id, joined_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (group_chat_id, user_id) DO NOTHING`,
			group.ID, userID, group.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupChat, error) {
	query := `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at, g.last_message_at,
			COALESCE(array_agg(gm.user_id) FILTER (WHERE gm.user_id IS NOT NULL), '{}')
		FROM group_chats g
		LEFT JOIN group_members gm ON gm.group_chat_id = g.id
		WHERE g.id = $1
		GROUP BY g.id`
	var g domain.GroupChat
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt, &g.LastMessageAt,
		&g.ParticipantIDs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &g, err
}

func (r *GroupRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.GroupSummary, error) {
	query := `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at, g.last_message_at,
			COALESCE(members.ids, '{}'),
			m.id, m.sender_id, m.sender_username, m.content, m.read_by, m.created_at, m.updated_at
		FROM group_chats g
		JOIN group_members me ON me.group_chat_id = g.id AND me.user_id = $1
		LEFT JOIN LATERAL (
			SELECT array_agg(user_id) AS ids
			FROM group_members
			WHERE group_chat_id = g.id
		) members ON true
		LEFT JOIN LATERAL (
			SELECT id, sender_id, sender_username, content, read_by, created_at, updated_at
			FROM group_messages
			WHERE group_chat_id = g.id
			ORDER BY created_at DESC
			LIMIT 1
		) m ON true
		ORDER BY COALESCE(g.last_message_at, g.created_at) DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.GroupSummary
	for rows.Next() {
		var s domain.GroupSummary
		var msgID, msgSender *uuid.UUID
		var msgUsername, msgContent *string
		var msgReadBy []uuid.UUID
		var msgCreated, msgUpdated *time.Time
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt, &s.LastMessageAt,
			&s.ParticipantIDs,
			&msgID, &msgSender, &msgUsername, &msgContent, &msgReadBy, &msgCreated, &msgUpdated,
		); err != nil {
			return nil, err
		}
		if msgID != nil {
			s.LastMessage = &domain.GroupMessage{
				ID:             *msgID,
				GroupChatID:    s.GroupChat.ID,
				SenderID:       *msgSender,
				SenderUsername: *msgUsername,
				Content:        *msgContent,
				ReadBy:         msgReadBy,
				CreatedAt:      *msgCreated,
				UpdatedAt:      msgUpdated,
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_members (group_chat_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_chat_id, user_id) DO NOTHING`,
		groupID, userID, time.Now(),
	)
	return err
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM group_members WHERE group_chat_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	return err
}

func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_chat_id = $1 AND user_id = $2
		)`,
		groupID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *GroupRepo) Touch(ctx context.Context, groupID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE group_chats SET last_message_at = $1, updated_at = $1 WHERE id = $2`,
		at, groupID,
	)
	return err
}
