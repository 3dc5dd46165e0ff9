package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autopesu/backend/internal/models"
)

type ServiceRepo struct {
	pool *pgxpool.Pool
}

func NewServiceRepo(pool *pgxpool.Pool) *ServiceRepo {
	return &ServiceRepo{pool: pool}
}

const serviceColumns = `id, vendor_id, category_id, name, description, price, duration_minutes, coin_reward, available, created_at, updated_at`

func scanService(row pgx.Row) (*models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.VendorID, &s.CategoryID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.CoinReward, &s.Available, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ServiceRepo) Create(ctx context.Context, s *models.Service) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (id, vendor_id, category_id, name, description, price, duration_minutes, coin_reward, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, s.ID, s.VendorID, s.CategoryID, s.Name, s.Description, s.Price, s.DurationMinutes, s.CoinReward, s.Available).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *ServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	return scanService(r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
}

// GetByIDTx reads the service inside the given transaction, so the reward
// amount credited at completion is the one visible to that transaction.
func (r *ServiceRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Service, error) {
	return scanService(tx.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
}

func (r *ServiceRepo) Update(ctx context.Context, s *models.Service) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE services SET category_id = $2, name = $3, description = $4, price = $5, duration_minutes = $6, coin_reward = $7, available = $8, updated_at = now()
		WHERE id = $1
	`, s.ID, s.CategoryID, s.Name, s.Description, s.Price, s.DurationMinutes, s.CoinReward, s.Available)
	return err
}

func (r *ServiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	return err
}

func (r *ServiceRepo) ListByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*models.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+` FROM services WHERE vendor_id = $1 ORDER BY created_at DESC
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// ListAvailableByVendorID returns only services a customer can book right now.
func (r *ServiceRepo) ListAvailableByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*models.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+` FROM services WHERE vendor_id = $1 AND available ORDER BY price ASC
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
