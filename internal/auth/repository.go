package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autopesu/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new user row for registration.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, phone, password_hash, role, coin_balance, referral_code)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.Phone, u.PasswordHash, u.Role, u.ReferralCode).Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByEmail returns the user for login, or nil if the email is unknown.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, phone, password_hash, role, coin_balance, referral_code, referral_count, referred_by, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash, &u.Role, &u.CoinBalance, &u.ReferralCode, &u.ReferralCount, &u.ReferredBy, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
