package models

import (
	"time"

	"github.com/google/uuid"
)

type UserProfile struct {
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	MobileNumber   *string   `json:"mobile_number,omitempty"`
	ProfileLevel   int       `json:"profile_level"`
	EmailVerified  bool      `json:"email_verified"`
	MobileVerified bool      `json:"mobile_verified"`
	CreatedAt      time.Time `json:"created_at"`
}

type ContactInfo struct {
	ID         int64      `json:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	OfferID    int64      `json:"offer_id"`
	ReferralID *int64     `json:"referral_id,omitempty"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Mobile     string     `json:"mobile"`
	VisitorID  string     `json:"visitor_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type GoogleFormSubmission struct {
	ID        int64      `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	VisitorID *string    `json:"visitor_id,omitempty"`
	OfferID   int64      `json:"offer_id"`
	Submitted bool       `json:"submitted"`
	CreatedAt time.Time  `json:"created_at"`
}
