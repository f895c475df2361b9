package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
)

// UserRepo reads the users table owned by the account system. It is
// the UserDirectory implementation; no write methods on purpose.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, username, display_name, public_id, status, created_at
		FROM users
		WHERE id = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.PublicID, &user.Status, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &user, err
}

func (r *UserRepo) GetByPublicID(ctx context.Context, publicID string) (*domain.User, error) {
	query := `
		SELECT id, username, display_name, public_id, status, created_at
		FROM users
		WHERE public_id = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, publicID).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.PublicID, &user.Status, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &user, err
}

func (r *UserRepo) SearchByUsername(ctx context.Context, query string, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	sql := fmt.Sprintf(`
		SELECT id, username, display_name, public_id, status, created_at
		FROM users
		WHERE username ILIKE $1 || '%%'
		ORDER BY username
		LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, sql, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID, &user.Username, &user.DisplayName, &user.PublicID, &user.Status, &user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
