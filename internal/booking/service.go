package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/notify"
	"github.com/autopesu/backend/internal/wallet"
)

// Recoverable booking errors. All abort the operation with zero writes.
var (
	ErrVendorUnavailable   = errors.New("vendor unavailable")
	ErrServiceNotFound     = errors.New("service not found")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidStatus       = errors.New("invalid appointment status")
	ErrNotAllowed          = errors.New("not allowed to modify appointment")
)

// ErrInsufficientCoins re-exports the ledger error so handlers can match it
// without importing wallet.
var ErrInsufficientCoins = wallet.ErrInsufficientCoins

// ErrCustomerNotFound is returned when the customer record is missing at debit time.
var ErrCustomerNotFound = errors.New("customer not found")

type VendorRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type ServiceRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Service, error)
}

type AppointmentRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Appointment, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, a *models.Appointment) error
}

// Ledger is the single coin-mutation entry point (wallet.Service).
type Ledger interface {
	Apply(ctx context.Context, tx pgx.Tx, d wallet.Delta) (newBalance int, err error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InsertEmailJobTxFunc enqueues an appointment email within the given
// transaction. Provided by main using river.Client.InsertTx.
type InsertEmailJobTxFunc func(ctx context.Context, tx pgx.Tx, args notify.AppointmentEmailJobArgs) error

// Service coordinates the appointment lifecycle and the coin ledger: creation
// with optional coin redemption, and status transitions with the exactly-once
// completion reward.
type Service struct {
	pool         TxBeginner
	vendors      VendorRepo
	services     ServiceRepo
	appointments AppointmentRepo
	ledger       Ledger
	insertEmail  InsertEmailJobTxFunc
	log          *slog.Logger
}

func NewService(
	pool TxBeginner,
	vendors VendorRepo,
	services ServiceRepo,
	appointments AppointmentRepo,
	ledger Ledger,
	insertEmail InsertEmailJobTxFunc,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:         pool,
		vendors:      vendors,
		services:     services,
		appointments: appointments,
		ledger:       ledger,
		insertEmail:  insertEmail,
		log:          log,
	}
}

// CreateInput is the proposed appointment.
type CreateInput struct {
	VendorID      uuid.UUID
	ServiceID     uuid.UUID
	CustomerID    uuid.UUID
	Date          time.Time
	CoinsToUse    int
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
}

// Create books an appointment. When coins are redeemed, the debit and the
// appointment insert commit in one transaction or not at all. Returns the new
// appointment's ID.
func (s *Service) Create(ctx context.Context, in CreateInput) (uuid.UUID, error) {
	if in.CoinsToUse < 0 {
		return uuid.Nil, fmt.Errorf("coins_to_use must be >= 0")
	}

	// Fail fast before opening a transaction.
	vendor, err := s.vendors.GetByID(ctx, in.VendorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrVendorUnavailable
		}
		return uuid.Nil, fmt.Errorf("load vendor: %w", err)
	}
	if vendor.Banned {
		return uuid.Nil, ErrVendorUnavailable
	}

	svc, err := s.services.GetByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrServiceNotFound
		}
		return uuid.Nil, fmt.Errorf("load service: %w", err)
	}
	if !svc.Available {
		return uuid.Nil, ErrServiceUnavailable
	}
	if svc.VendorID != in.VendorID {
		return uuid.Nil, ErrServiceNotFound
	}

	// One redeemed coin discounts one euro, floored at zero.
	total := svc.Price.Sub(decimal.NewFromInt(int64(in.CoinsToUse)))
	if total.IsNegative() {
		total = decimal.Zero
	}

	appt := &models.Appointment{
		ID:              uuid.New(),
		VendorID:        in.VendorID,
		ServiceID:       in.ServiceID,
		CustomerID:      in.CustomerID,
		Date:            in.Date,
		DurationMinutes: svc.DurationMinutes,
		TotalPrice:      total,
		CoinsUsed:       in.CoinsToUse,
		Status:          models.AppointmentStatusConfirmed,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		Notes:           in.Notes,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if in.CoinsToUse > 0 {
		_, err := s.ledger.Apply(ctx, tx, wallet.Delta{
			UserID:        in.CustomerID,
			Amount:        -in.CoinsToUse,
			Description:   "coins used for discount",
			ServiceID:     &in.ServiceID,
			AppointmentID: &appt.ID,
		})
		if err != nil {
			if errors.Is(err, wallet.ErrUserNotFound) {
				return uuid.Nil, ErrCustomerNotFound
			}
			if errors.Is(err, wallet.ErrInsufficientCoins) {
				return uuid.Nil, err
			}
			return uuid.Nil, fmt.Errorf("debit coins: %w", err)
		}
	}

	if err := s.appointments.CreateTx(ctx, tx, appt); err != nil {
		return uuid.Nil, fmt.Errorf("create appointment: %w", err)
	}

	// Best-effort: a failed enqueue must not sink the booking.
	s.enqueueEmail(ctx, tx, notify.AppointmentEmailJobArgs{
		AppointmentID: appt.ID,
		Event:         notify.EventBookingConfirmed,
		Status:        appt.Status,
	})

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit booking tx: %w", err)
	}
	return appt.ID, nil
}

// Update is a partial appointment update. Status must be set when changing status.
type Update struct {
	Status        *string
	Date          *time.Time
	Notes         *string
	CustomerPhone *string
}

// UpdateStatus applies a partial update on behalf of the given caller. On the
// first transition into completed it credits the service's coin reward to the
// customer, exactly once, in the same transaction as the status write. Every
// other change is a plain update with no ledger interaction.
//
// Admins may change anything. The vendor's own user may change appointments
// at that vendor. The booking customer may edit their own appointment, but
// the only status they may set is cancelled_by_customer.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, upd Update, callerID uuid.UUID, role string) error {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := s.authorize(ctx, appt, upd, callerID, role); err != nil {
		return err
	}

	oldStatus := appt.Status
	applyPatch(appt, upd)
	if !models.ValidAppointmentStatus(appt.Status) {
		return ErrInvalidStatus
	}

	completing := appt.Status == models.AppointmentStatusCompleted && oldStatus != models.AppointmentStatusCompleted

	if completing && (appt.CustomerID == uuid.Nil || appt.ServiceID == uuid.Nil) {
		// Legacy records can lack references. Apply the status change but
		// never credit against a dangling wallet.
		s.log.Warn("completing appointment without customer/service reference, reward skipped",
			"appointment_id", appt.ID)
		completing = false
	}
	if completing && appt.CoinRewardProcessed {
		// Fast path for retried completions. The authoritative check happens
		// under the row lock in completeWithReward.
		completing = false
	}

	if !completing {
		return s.writeUpdate(ctx, appt, oldStatus)
	}
	return s.completeWithReward(ctx, appt)
}

// authorize decides whether the caller may apply upd to appt.
func (s *Service) authorize(ctx context.Context, appt *models.Appointment, upd Update, callerID uuid.UUID, role string) error {
	if role == models.RoleAdmin {
		return nil
	}
	if role == models.RoleVendor {
		vendor, err := s.vendors.GetByID(ctx, appt.VendorID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load vendor for authorization: %w", err)
		}
		if err == nil && vendor.UserID == callerID {
			return nil
		}
		// A vendor user booking at another vendor falls through to the
		// customer rules.
	}
	if appt.CustomerID != callerID {
		return ErrNotAllowed
	}
	if upd.Status != nil && *upd.Status != models.AppointmentStatusCancelledByCustomer {
		return ErrNotAllowed
	}
	return nil
}

// writeUpdate persists a non-rewarding update. Status-change notifications
// still go out through the queue.
func (s *Service) writeUpdate(ctx context.Context, appt *models.Appointment, oldStatus string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.appointments.UpdateTx(ctx, tx, appt); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if appt.Status != oldStatus {
		s.enqueueEmail(ctx, tx, notify.AppointmentEmailJobArgs{
			AppointmentID: appt.ID,
			Event:         notify.EventStatusChanged,
			Status:        appt.Status,
		})
	}
	return tx.Commit(ctx)
}

// completeWithReward marks the appointment completed and credits the
// service's coin reward, all in one transaction. The appointment row is
// locked and re-read first: concurrent completions serialize on the lock, and
// whoever finds the reward already processed writes the status change only.
func (s *Service) completeWithReward(ctx context.Context, appt *models.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reward tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.appointments.GetByIDForUpdate(ctx, tx, appt.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("lock appointment for reward: %w", err)
	}
	if current.CoinRewardProcessed {
		// Lost the race: keep the status change, never a second credit.
		appt.CoinRewardProcessed = true
		appt.CoinRewardAmount = current.CoinRewardAmount
		if err := s.appointments.UpdateTx(ctx, tx, appt); err != nil {
			return fmt.Errorf("update completed appointment: %w", err)
		}
		return tx.Commit(ctx)
	}

	svc, err := s.services.GetByIDTx(ctx, tx, appt.ServiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrServiceNotFound
		}
		return fmt.Errorf("load service for reward: %w", err)
	}

	if svc.CoinReward > 0 {
		_, err := s.ledger.Apply(ctx, tx, wallet.Delta{
			UserID:        appt.CustomerID,
			Amount:        svc.CoinReward,
			Description:   fmt.Sprintf("reward for completed wash: %s", svc.Name),
			ServiceID:     &appt.ServiceID,
			AppointmentID: &appt.ID,
		})
		if err != nil {
			return err
		}
	}

	appt.CoinRewardProcessed = true
	appt.CoinRewardAmount = svc.CoinReward
	if err := s.appointments.UpdateTx(ctx, tx, appt); err != nil {
		return fmt.Errorf("update completed appointment: %w", err)
	}

	s.enqueueEmail(ctx, tx, notify.AppointmentEmailJobArgs{
		AppointmentID: appt.ID,
		Event:         notify.EventStatusChanged,
		Status:        appt.Status,
	})

	return tx.Commit(ctx)
}

// enqueueEmail inserts the notification job into the caller's transaction.
// Notification errors are logged and swallowed; booking success is
// independent of notification success.
func (s *Service) enqueueEmail(ctx context.Context, tx pgx.Tx, args notify.AppointmentEmailJobArgs) {
	if s.insertEmail == nil {
		return
	}
	if err := s.insertEmail(ctx, tx, args); err != nil {
		s.log.Warn("enqueue appointment email failed", "appointment_id", args.AppointmentID, "error", err)
	}
}

func applyPatch(appt *models.Appointment, upd Update) {
	if upd.Status != nil {
		appt.Status = *upd.Status
	}
	if upd.Date != nil {
		appt.Date = *upd.Date
	}
	if upd.Notes != nil {
		appt.Notes = *upd.Notes
	}
	if upd.CustomerPhone != nil {
		appt.CustomerPhone = *upd.CustomerPhone
	}
}
