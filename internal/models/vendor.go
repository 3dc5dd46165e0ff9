package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Vendor struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Address      string          `json:"address,omitempty"`
	City         string          `json:"city,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	OpeningHours json.RawMessage `json:"opening_hours,omitempty"`
	Banned       bool            `json:"banned"`
	Verified     bool            `json:"verified"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
