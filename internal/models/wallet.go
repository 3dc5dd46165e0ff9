package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet transaction type enums. The type must agree with the sign of Amount:
// credit entries carry a positive amount, debit entries a negative one.
const (
	WalletEntryCredit = "credit"
	WalletEntryDebit  = "debit"
)

// WalletTransaction is an append-only ledger entry. Entries are immutable once
// created; a user's coin balance always equals the sum of their entry amounts.
type WalletTransaction struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Amount        int        `json:"amount"`
	Type          string     `json:"type"`
	Description   string     `json:"description"`
	ServiceID     *uuid.UUID `json:"service_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	BalanceAfter  *int       `json:"balance_after,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
