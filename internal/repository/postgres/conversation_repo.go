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

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) CreateWithFirstMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Two concurrent first-sends race on the unique (user_a_id,
	// user_b_id) index; the loser's insert is a no-op and the select
	// below collapses both onto the surviving row.
	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, user_a_id, user_b_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_a_id, user_b_id) DO NOTHING`,
		conv.ID, conv.UserAID, conv.UserBID, conv.CreatedAt,
	)
	if err != nil {
		return err
	}

	var survivingID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM conversations WHERE user_a_id = $1 AND user_b_id = $2`,
		conv.UserAID, conv.UserBID,
	).Scan(&survivingID)
	if err != nil {
		return err
	}
	conv.ID = survivingID
	msg.ConversationID = survivingID

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Read, msg.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET last_message_at = $1 WHERE id = $2`,
		msg.CreatedAt, conv.ID,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_a_id, user_b_id, created_at, last_message_at
		FROM conversations
		WHERE id = $1`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.UserAID, &conv.UserBID, &conv.CreatedAt, &conv.LastMessageAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &conv, err
}

func (r *ConversationRepo) GetByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_a_id, user_b_id, created_at, last_message_at
		FROM conversations
		WHERE user_a_id = $1 AND user_b_id = $2`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, userA, userB).Scan(
		&conv.ID, &conv.UserAID, &conv.UserBID, &conv.CreatedAt, &conv.LastMessageAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &conv, err
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	query := `
		SELECT c.id, c.user_a_id, c.user_b_id, c.created_at, c.last_message_at,
			u.id, u.username, u.display_name, u.public_id,
			m.id, m.sender_id, m.receiver_id, m.content, m.read, m.created_at, m.updated_at
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.user_a_id = $1 THEN c.user_b_id ELSE c.user_a_id END
		LEFT JOIN LATERAL (
			SELECT id, sender_id, receiver_id, content, read, created_at, updated_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC
			LIMIT 1
		) m ON true
		WHERE c.user_a_id = $1 OR c.user_b_id = $1
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.ConversationSummary
	for rows.Next() {
		var s domain.ConversationSummary
		var msgID, msgSender, msgReceiver *uuid.UUID
		var msgContent *string
		var msgRead *bool
		var msgCreated, msgUpdated *time.Time
		if err := rows.Scan(
			&s.ID, &s.UserAID, &s.UserBID, &s.CreatedAt, &s.LastMessageAt,
			&s.OtherUser.ID, &s.OtherUser.Username, &s.OtherUser.DisplayName, &s.OtherUser.PublicID,
			&msgID, &msgSender, &msgReceiver, &msgContent, &msgRead, &msgCreated, &msgUpdated,
		); err != nil {
			return nil, err
		}
		if msgID != nil {
			s.LastMessage = &domain.Message{
				ID:             *msgID,
				ConversationID: s.Conversation.ID,
				SenderID:       *msgSender,
				ReceiverID:     *msgReceiver,
				Content:        *msgContent,
				Read:           *msgRead,
				CreatedAt:      *msgCreated,
				UpdatedAt:      msgUpdated,
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
