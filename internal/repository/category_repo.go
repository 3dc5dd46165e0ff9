package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autopesu/backend/internal/models"
)

type CategoryRepo struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

func (r *CategoryRepo) Create(ctx context.Context, c *models.ServiceCategory) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO service_categories (id, name, slug)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, c.ID, c.Name, c.Slug).Scan(&c.CreatedAt)
}

func (r *CategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceCategory, error) {
	var c models.ServiceCategory
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, created_at FROM service_categories WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]*models.ServiceCategory, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug, created_at FROM service_categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ServiceCategory
	for rows.Next() {
		var c models.ServiceCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
