package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the messaging schema. Every statement is idempotent
// so startup can run this unconditionally. The users table is owned by
// the account system; it is created here only so standalone
// deployments have something to join against.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			display_name VARCHAR(100) NOT NULL,
			public_id VARCHAR(50) UNIQUE,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			user_a_id UUID NOT NULL,
			user_b_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_message_at TIMESTAMPTZ,
			UNIQUE (user_a_id, user_b_id),
			CHECK (user_a_id < user_b_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id UUID NOT NULL,
			receiver_id UUID NOT NULL,
			content TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(conversation_id, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages(conversation_id, receiver_id)
		WHERE read = FALSE`,

		`CREATE TABLE IF NOT EXISTS group_chats (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			last_message_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_chat_id UUID NOT NULL REFERENCES group_chats(id) ON DELETE CASCADE,
			user_id UUID NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_chat_id, user_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_group_members_user
		ON group_members(user_id)`,

		`CREATE TABLE IF NOT EXISTS group_messages (
			id UUID PRIMARY KEY,
			group_chat_id UUID NOT NULL REFERENCES group_chats(id) ON DELETE CASCADE,
			sender_id UUID NOT NULL,
			sender_username VARCHAR(50) NOT NULL,
			content TEXT NOT NULL,
			read_by UUID[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_group_messages_group
		ON group_messages(group_chat_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS block_relations (
			user_id UUID NOT NULL,
			blocked_user_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, blocked_user_id)
		)`,
	}

	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
