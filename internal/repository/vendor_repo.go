package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autopesu/backend/internal/models"
)

type VendorRepo struct {
	pool *pgxpool.Pool
}

func NewVendorRepo(pool *pgxpool.Pool) *VendorRepo {
	return &VendorRepo{pool: pool}
}

const vendorColumns = `id, user_id, name, description, address, city, phone, opening_hours, banned, verified, created_at, updated_at`

func scanVendor(row pgx.Row) (*models.Vendor, error) {
	var v models.Vendor
	err := row.Scan(&v.ID, &v.UserID, &v.Name, &v.Description, &v.Address, &v.City, &v.Phone, &v.OpeningHours, &v.Banned, &v.Verified, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VendorRepo) Create(ctx context.Context, v *models.Vendor) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO vendors (id, user_id, name, description, address, city, phone, opening_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, v.ID, v.UserID, v.Name, v.Description, v.Address, v.City, v.Phone, v.OpeningHours).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *VendorRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
}

func (r *VendorRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	return scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE user_id = $1`, userID))
}

func (r *VendorRepo) Update(ctx context.Context, v *models.Vendor) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE vendors SET name = $2, description = $3, address = $4, city = $5, phone = $6, opening_hours = $7, updated_at = now()
		WHERE id = $1
	`, v.ID, v.Name, v.Description, v.Address, v.City, v.Phone, v.OpeningHours)
	return err
}

// SetBanned flips the moderation flag. Admin-only caller.
func (r *VendorRepo) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE vendors SET banned = $2, updated_at = now() WHERE id = $1`, id, banned)
	return err
}

// SetVerified flips the verification flag. Admin-only caller.
func (r *VendorRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE vendors SET verified = $2, updated_at = now() WHERE id = $1`, id, verified)
	return err
}

// Search lists public vendors. Banned vendors are always excluded; city is an
// optional equality filter.
func (r *VendorRepo) Search(ctx context.Context, city string) ([]*models.Vendor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+vendorColumns+` FROM vendors
		WHERE NOT banned AND ($1 = '' OR city = $1)
		ORDER BY verified DESC, created_at DESC
	`, city)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func (r *VendorRepo) List(ctx context.Context) ([]*models.Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+vendorColumns+` FROM vendors ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
