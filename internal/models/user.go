package models

import (
	"time"

	"github.com/google/uuid"
)

// User role enums.
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	CoinBalance   int       `json:"coin_balance"`
	ReferralCode  string    `json:"referral_code"`
	ReferralCount int       `json:"referral_count"`
	ReferredBy    *string   `json:"referred_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
