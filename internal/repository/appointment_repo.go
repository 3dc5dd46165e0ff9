package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autopesu/backend/internal/models"
)

type AppointmentRepo struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) *AppointmentRepo {
	return &AppointmentRepo{pool: pool}
}

const appointmentColumns = `id, vendor_id, service_id, customer_id, date, duration_minutes, total_price, coins_used, status, coin_reward_processed, coin_reward_amount, customer_name, customer_phone, customer_email, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(&a.ID, &a.VendorID, &a.ServiceID, &a.CustomerID, &a.Date, &a.DurationMinutes, &a.TotalPrice, &a.CoinsUsed, &a.Status, &a.CoinRewardProcessed, &a.CoinRewardAmount, &a.CustomerName, &a.CustomerPhone, &a.CustomerEmail, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateTx inserts an appointment inside the given transaction so the insert
// commits together with any coin debit.
func (r *AppointmentRepo) CreateTx(ctx context.Context, tx pgx.Tx, a *models.Appointment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO appointments (id, vendor_id, service_id, customer_id, date, duration_minutes, total_price, coins_used, status, coin_reward_processed, coin_reward_amount, customer_name, customer_phone, customer_email, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`, a.ID, a.VendorID, a.ServiceID, a.CustomerID, a.Date, a.DurationMinutes, a.TotalPrice, a.CoinsUsed, a.Status, a.CoinRewardProcessed, a.CoinRewardAmount, a.CustomerName, a.CustomerPhone, a.CustomerEmail, a.Notes).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

// GetByIDForUpdate locks the appointment row for update. Call within a
// transaction; concurrent completions of the same appointment serialize here.
func (r *AppointmentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

// UpdateTx writes the appointment inside the given transaction. Used by the
// completion flow so the status change commits together with the reward credit.
func (r *AppointmentRepo) UpdateTx(ctx context.Context, tx pgx.Tx, a *models.Appointment) error {
	_, err := tx.Exec(ctx, updateAppointmentSQL,
		a.ID, a.Date, a.DurationMinutes, a.CoinsUsed, a.Status, a.CoinRewardProcessed, a.CoinRewardAmount, a.CustomerName, a.CustomerPhone, a.CustomerEmail, a.Notes)
	return err
}

const updateAppointmentSQL = `
	UPDATE appointments SET date = $2, duration_minutes = $3, coins_used = $4, status = $5, coin_reward_processed = $6, coin_reward_amount = $7, customer_name = $8, customer_phone = $9, customer_email = $10, notes = $11, updated_at = now()
	WHERE id = $1
`

func (r *AppointmentRepo) ListByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*models.Appointment, error) {
	return r.listWhere(ctx, "customer_id = $1", customerID)
}

func (r *AppointmentRepo) ListByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*models.Appointment, error) {
	return r.listWhere(ctx, "vendor_id = $1", vendorID)
}

func (r *AppointmentRepo) listWhere(ctx context.Context, where string, arg any) ([]*models.Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE `+where+` ORDER BY date DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
