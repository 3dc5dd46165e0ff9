package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autopesu/backend/internal/models"
)

// WalletRepo persists the append-only wallet ledger. Entries are never
// updated or deleted.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// CreateTx appends a ledger entry inside the given transaction.
func (r *WalletRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (id, user_id, amount, type, description, service_id, appointment_id, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, t.ID, t.UserID, t.Amount, t.Type, t.Description, t.ServiceID, t.AppointmentID, t.BalanceAfter).Scan(&t.CreatedAt)
}

// ListByUserID returns a user's ledger entries in chronological order
// (insertion order equals chronological order, never reordered).
func (r *WalletRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, type, description, service_id, appointment_id, balance_after, created_at
		FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &t.ServiceID, &t.AppointmentID, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

func (r *WalletRepo) ListByAppointmentID(ctx context.Context, appointmentID uuid.UUID) ([]*models.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, type, description, service_id, appointment_id, balance_after, created_at
		FROM wallet_transactions WHERE appointment_id = $1 ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &t.ServiceID, &t.AppointmentID, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// SumByUserID returns the signed sum of a user's ledger entries. Used by the
// balance reconciliation endpoint: the sum must equal users.coin_balance.
func (r *WalletRepo) SumByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE user_id = $1
	`, userID).Scan(&sum)
	return sum, err
}
