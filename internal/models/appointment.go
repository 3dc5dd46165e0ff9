package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Appointment status enums. Direct bookings start at confirmed; alternate
// creation paths (admin) may start at pending.
const (
	AppointmentStatusPending             = "pending"
	AppointmentStatusConfirmed           = "confirmed"
	AppointmentStatusCompleted           = "completed"
	AppointmentStatusCancelled           = "cancelled"
	AppointmentStatusCancelledByCustomer = "cancelled_by_customer"
	AppointmentStatusNoShow              = "no_show"
)

// ValidAppointmentStatus reports whether s is a known status value.
func ValidAppointmentStatus(s string) bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusCancelledByCustomer, AppointmentStatusNoShow:
		return true
	}
	return false
}

// TerminalAppointmentStatus reports whether s is a terminal status. Terminal
// states may still be corrected manually; the coin reward is guarded by
// CoinRewardProcessed, not by the status value alone.
func TerminalAppointmentStatus(s string) bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusCancelledByCustomer, AppointmentStatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID                  uuid.UUID       `json:"id"`
	VendorID            uuid.UUID       `json:"vendor_id"`
	ServiceID           uuid.UUID       `json:"service_id"`
	CustomerID          uuid.UUID       `json:"customer_id"`
	Date                time.Time       `json:"date"`
	DurationMinutes     int             `json:"duration_minutes"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	CoinsUsed           int             `json:"coins_used"`
	Status              string          `json:"status"`
	CoinRewardProcessed bool            `json:"coin_reward_processed"`
	CoinRewardAmount    int             `json:"coin_reward_amount"`
	CustomerName        string          `json:"customer_name,omitempty"`
	CustomerPhone       string          `json:"customer_phone,omitempty"`
	CustomerEmail       string          `json:"customer_email,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
