package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/wallet"
)

var (
	ErrInvalidCode  = errors.New("invalid referral code")
	ErrSelfReferral = errors.New("self-referral not allowed")
	ErrAlreadyUsed  = errors.New("referral code already redeemed")
)

type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	IncrementReferralCount(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	SetReferredBy(ctx context.Context, tx pgx.Tx, id uuid.UUID, code string) error
}

type Ledger interface {
	Apply(ctx context.Context, tx pgx.Tx, d wallet.Delta) (newBalance int, err error)
}

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service redeems referral codes: one atomic transaction credits both the
// referrer and the redeemer, bumps the referrer's count, and records the used
// code on the redeemer.
type Service struct {
	pool   TxBeginner
	users  UserRepo
	ledger Ledger

	referrerBonus int
	redeemerBonus int
}

func NewService(pool TxBeginner, users UserRepo, ledger Ledger, referrerBonus, redeemerBonus int) *Service {
	return &Service{
		pool:          pool,
		users:         users,
		ledger:        ledger,
		referrerBonus: referrerBonus,
		redeemerBonus: redeemerBonus,
	}
}

// Redeem applies code on behalf of userID. No wallet is touched when any
// precondition fails.
func (s *Service) Redeem(ctx context.Context, code string, userID uuid.UUID) error {
	owner, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidCode
		}
		return fmt.Errorf("look up referral code: %w", err)
	}
	if owner.ID == userID {
		return ErrSelfReferral
	}

	redeemer, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load redeemer: %w", err)
	}
	if redeemer.ReferredBy != nil {
		return ErrAlreadyUsed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin referral tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Recording the used code comes first. The conditional UPDATE matches
	// nothing when another redemption already committed, so the whole
	// transaction aborts before any wallet is credited.
	if err := s.users.SetReferredBy(ctx, tx, userID, code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyUsed
		}
		return fmt.Errorf("record used code: %w", err)
	}

	if _, err := s.ledger.Apply(ctx, tx, wallet.Delta{
		UserID:      owner.ID,
		Amount:      s.referrerBonus,
		Description: fmt.Sprintf("referral bonus: %s joined", redeemer.Name),
	}); err != nil {
		return fmt.Errorf("credit referrer: %w", err)
	}
	if _, err := s.ledger.Apply(ctx, tx, wallet.Delta{
		UserID:      userID,
		Amount:      s.redeemerBonus,
		Description: "welcome bonus for referral code",
	}); err != nil {
		return fmt.Errorf("credit redeemer: %w", err)
	}
	if err := s.users.IncrementReferralCount(ctx, tx, owner.ID); err != nil {
		return fmt.Errorf("increment referral count: %w", err)
	}
	return tx.Commit(ctx)
}
