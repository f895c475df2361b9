package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) Create(ctx context.Context, rel *domain.BlockRelation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO block_relations (user_id, blocked_user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, blocked_user_id) DO NOTHING`,
		rel.UserID, rel.BlockedUserID, rel.CreatedAt,
	)
	return err
}

func (r *BlockRepo) Delete(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM block_relations WHERE user_id = $1 AND blocked_user_id = $2`,
		blockerID, blockedID,
	)
	return err
}

func (r *BlockRepo) Exists(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM block_relations WHERE user_id = $1 AND blocked_user_id = $2
		)`,
		blockerID, blockedID,
	).Scan(&exists)
	return exists, err
}

func (r *BlockRepo) ListBlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT blocked_user_id FROM block_relations WHERE user_id = $1`,
		blockerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *BlockRepo) List(ctx context.Context, blockerID uuid.UUID) ([]domain.BlockRelation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, blocked_user_id, created_at
		FROM block_relations
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		blockerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []domain.BlockRelation
	for rows.Next() {
		var rel domain.BlockRelation
		if err := rows.Scan(&rel.UserID, &rel.BlockedUserID, &rel.CreatedAt); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}
