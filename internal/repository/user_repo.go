package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autopesu/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, name, phone, password_hash, role, coin_balance, referral_code, referral_count, referred_by, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash, &u.Role, &u.CoinBalance, &u.ReferralCode, &u.ReferralCount, &u.ReferredBy, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// GetByIDForUpdate locks the user row for update. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// AddCoins adds amount to the user's coin balance and returns the new balance.
func (r *UserRepo) AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET coin_balance = coin_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING coin_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// DeductCoins atomically deducts amount from the user's coin balance if
// coin_balance >= amount. Returns pgx.ErrNoRows when the balance is too low.
func (r *UserRepo) DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET coin_balance = coin_balance - $1, updated_at = now()
		WHERE id = $2 AND coin_balance >= $1
		RETURNING coin_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// IncrementReferralCount bumps the referrer's counter. Call within the same
// transaction as the bonus credits.
func (r *UserRepo) IncrementReferralCount(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET referral_count = referral_count + 1, updated_at = now() WHERE id = $1
	`, id)
	return err
}

// SetReferredBy records the redeemed code on the user. The conditional UPDATE
// matches nothing when a code is already recorded; that is reported as
// pgx.ErrNoRows so a concurrent second redemption aborts its transaction.
func (r *UserRepo) SetReferredBy(ctx context.Context, tx pgx.Tx, id uuid.UUID, code string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE users SET referred_by = $2, updated_at = now() WHERE id = $1 AND referred_by IS NULL
	`, id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
