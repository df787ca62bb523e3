package models

import (
	"time"

	"github.com/google/uuid"
)

type MobileValidation struct {
	MobileNumber string    `json:"mobile_number"`
	IsValid      bool      `json:"is_valid"`
	ValidatedAt  time.Time `json:"validated_at"`
}

type PendingVerification struct {
	ID           int64      `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	MobileNumber string     `json:"mobile_number"`
	IsProcessed  bool       `json:"is_processed"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// APILog is one provider attempt, kept for the staff dashboard.
type APILog struct {
	ID        int64     `json:"id"`
	APIName   string    `json:"api_name"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}
