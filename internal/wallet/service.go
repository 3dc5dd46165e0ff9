package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/autopesu/backend/internal/models"
)

// ErrInsufficientCoins is returned when a debit would take the balance below zero.
var ErrInsufficientCoins = errors.New("insufficient coins")

// ErrUserNotFound is returned when the wallet owner does not exist at apply time.
var ErrUserNotFound = errors.New("user not found")

// ErrZeroDelta is returned for a delta with amount 0; the ledger records facts,
// not no-ops.
var ErrZeroDelta = errors.New("ledger delta must be non-zero")

// Delta is one signed coin movement for one user. Negative amounts debit,
// positive amounts credit; the resulting ledger entry's type follows the sign.
type Delta struct {
	UserID        uuid.UUID
	Amount        int
	Description   string
	ServiceID     *uuid.UUID
	AppointmentID *uuid.UUID
}

// AccountRepo is the minimal user repository interface for the ledger.
type AccountRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// LedgerRepo is the minimal wallet-transaction interface for the ledger.
type LedgerRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.WalletTransaction) error
}

// Service is the single entry point for coin mutations. Every caller (booking
// debit, completion reward, referral bonus, admin adjustment) goes through
// Apply so the balance/ledger invariant is enforced in one place.
type Service struct {
	accounts AccountRepo
	ledger   LedgerRepo
}

func NewService(accounts AccountRepo, ledger LedgerRepo) *Service {
	return &Service{accounts: accounts, ledger: ledger}
}

// BalanceMatchesLedger reports whether a stored balance agrees with the sum
// of the user's ledger entry amounts. A mismatch means the append-only
// invariant was broken outside Apply.
func BalanceMatchesLedger(balance, ledgerSum int) bool {
	return balance == ledgerSum
}

// Apply locks the user row, moves the balance, and appends exactly one ledger
// entry, all inside the caller's transaction. A debit that would take the
// balance below zero fails with ErrInsufficientCoins before any write.
func (s *Service) Apply(ctx context.Context, tx pgx.Tx, d Delta) (newBalance int, err error) {
	if d.Amount == 0 {
		return 0, ErrZeroDelta
	}

	u, err := s.accounts.GetByIDForUpdate(ctx, tx, d.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	entryType := models.WalletEntryCredit
	if d.Amount < 0 {
		entryType = models.WalletEntryDebit
		if u.CoinBalance < -d.Amount {
			return 0, ErrInsufficientCoins
		}
		newBalance, err = s.accounts.DeductCoins(ctx, tx, d.UserID, -d.Amount)
	} else {
		newBalance, err = s.accounts.AddCoins(ctx, tx, d.UserID, d.Amount)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conditional UPDATE matched no row: balance dropped below the
			// debit between the locked read and the write. Cannot happen
			// under FOR UPDATE, but keep the error well-typed.
			return 0, ErrInsufficientCoins
		}
		return 0, err
	}

	entry := &models.WalletTransaction{
		ID:            uuid.New(),
		UserID:        d.UserID,
		Amount:        d.Amount,
		Type:          entryType,
		Description:   d.Description,
		ServiceID:     d.ServiceID,
		AppointmentID: d.AppointmentID,
		BalanceAfter:  &newBalance,
	}
	if err := s.ledger.CreateTx(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}
