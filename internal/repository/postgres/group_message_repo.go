package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
)

type GroupMessageRepo struct {
	pool *pgxpool.Pool
}

func NewGroupMessageRepo(pool *pgxpool.Pool) *GroupMessageRepo {
	return &GroupMessageRepo{pool: pool}
}

func (r *GroupMessageRepo) Create(ctx context.Context, msg *domain.GroupMessage) error {
	query := `
		INSERT INTO group_messages (id, group_chat_id, sender_id, sender_username, content, read_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.GroupChatID, msg.SenderID, msg.SenderUsername, msg.Content, msg.ReadBy, msg.CreatedAt,
	)
	return err
}

func (r *GroupMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupMessage, error) {
	query := `
		SELECT id, group_chat_id, sender_id, sender_username, content, read_by, created_at, updated_at
		FROM group_messages
		WHERE id = $1`
	var msg domain.GroupMessage
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.GroupChatID, &msg.SenderID, &msg.SenderUsername,
		&msg.Content, &msg.ReadBy, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &msg, err
}

func (r *GroupMessageRepo) ListByGroup(ctx context.Context, groupID uuid.UUID, before *uuid.UUID, limit int) ([]domain.GroupMessage, error) {
	var query string
	var args []any

	if before != nil {
		query = fmt.Sprintf(`
			SELECT id, group_chat_id, sender_id, sender_username, content, read_by, created_at, updated_at
			FROM group_messages
			WHERE group_chat_id = $1
				AND created_at < (SELECT created_at FROM group_messages WHERE id = $2)
			ORDER BY created_at DESC
			LIMIT %d`, limit)
		args = []any{groupID, *before}
	} else {
		query = fmt.Sprintf(`
			SELECT id, group_chat_id, sender_id, sender_username, content, read_by, created_at, updated_at
			FROM group_messages
			WHERE group_chat_id = $1
			ORDER BY created_at DESC
			LIMIT %d`, limit)
		args = []any{groupID}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.GroupMessage
	for rows.Next() {
		var msg domain.GroupMessage
		if err := rows.Scan(
			&msg.ID, &msg.GroupChatID, &msg.SenderID, &msg.SenderUsername,
			&msg.Content, &msg.ReadBy, &msg.CreatedAt, &msg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

func (r *GroupMessageRepo) Update(ctx context.Context, msg *domain.GroupMessage) error {
	query := `UPDATE group_messages SET content = $1, updated_at = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, msg.Content, time.Now(), msg.ID)
	return err
}

func (r *GroupMessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM group_messages WHERE id = $1`, id)
	return err
}

func (r *GroupMessageRepo) MarkGroupRead(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE group_messages
		SET read_by = array_append(read_by, $2)
		WHERE group_chat_id = $1 AND NOT (read_by @> ARRAY[$2]::uuid[])`,
		groupID, userID,
	)
	return err
}

func (r *GroupMessageRepo) CountUnread(ctx context.Context, groupID, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM group_messages
		WHERE group_chat_id = $1 AND NOT (read_by @> ARRAY[$2]::uuid[])`,
		groupID, userID,
	).Scan(&count)
	return count, err
}
