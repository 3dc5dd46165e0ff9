package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is a bookable wash offered by a vendor. Read-only input to the
// booking flow; CoinReward is the number of coins credited when an
// appointment for this service completes.
type Service struct {
	ID              uuid.UUID       `json:"id"`
	VendorID        uuid.UUID       `json:"vendor_id"`
	CategoryID      *uuid.UUID      `json:"category_id,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes"`
	CoinReward      int             `json:"coin_reward"`
	Available       bool            `json:"available"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type ServiceCategory struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}
