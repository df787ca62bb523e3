package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type WorkingState string

const (
	WorkingStatePending   WorkingState = "pending"
	WorkingStateClicked   WorkingState = "clicked"
	WorkingStateConverted WorkingState = "converted"
	WorkingStateFailed    WorkingState = "failed"
)

// ParseWorkingState maps a raw label onto one of the four allowed states.
func ParseWorkingState(s string) (WorkingState, error) {
	switch WorkingState(s) {
	case WorkingStatePending, WorkingStateClicked, WorkingStateConverted, WorkingStateFailed:
		return WorkingState(s), nil
	}
	return "", fmt.Errorf("unknown working state %q", s)
}

// IsTerminal reports whether no further transition is expected.
func (s WorkingState) IsTerminal() bool {
	return s == WorkingStateConverted || s == WorkingStateFailed
}

// Promoter is whoever shares an offer: a signed-in user or an anonymous visitor.
type Promoter struct {
	UserID    *uuid.UUID
	VisitorID string
}

func (p Promoter) IsAnonymous() bool { return p.UserID == nil }

type Referral struct {
	Versioned

	ID           int64        `json:"id"`
	UserID       *uuid.UUID   `json:"user_id,omitempty"`
	VisitorID    *string      `json:"visitor_id,omitempty"`
	OfferID      int64        `json:"offer_id"`
	WorkingState WorkingState `json:"working_state"`
	ClickCount   int          `json:"click_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (r *Referral) GetID() string { return strconv.FormatInt(r.ID, 10) }

// ReferralClick is the dedup ledger row for one (referral, ip) pair.
type ReferralClick struct {
	ID         int64     `json:"id"`
	ReferralID int64     `json:"referral_id"`
	IPAddress  string    `json:"ip_address"`
	SessionKey string    `json:"session_key"`
	ClickedAt  time.Time `json:"clicked_at"`
}

// ReferralStats summarises a promoter's referrals for the dashboard.
type ReferralStats struct {
	Total     int `json:"total"`
	Clicked   int `json:"clicked"`
	Converted int `json:"converted"`
}
