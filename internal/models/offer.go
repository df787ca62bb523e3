package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Advertiser struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	BaseURL          string `json:"base_url"`
	QueryParamPrefix string `json:"query_param_prefix"`
}

type OfferStatus string

const (
	OfferStatusActive   OfferStatus = "active"
	OfferStatusInactive OfferStatus = "inactive"
)

type Offer struct {
	ID                  int64           `json:"id"`
	Advertiser          *Advertiser     `json:"advertiser,omitempty"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	Price               decimal.Decimal `json:"price"`
	Link                string          `json:"link"`
	Terms               string          `json:"terms"`
	Theme               string          `json:"theme"`
	Status              OfferStatus     `json:"status"`
	RequiresGoogleForm  bool            `json:"requires_google_form"`
	GoogleFormURL       string          `json:"google_form_url,omitempty"`
	RequiresContactInfo bool            `json:"requires_contact_info"`
	CreatedAt           time.Time       `json:"created_at"`
}

func (o *Offer) IsActive() bool { return o.Status == OfferStatusActive }

type AdBanner struct {
	ID       int64  `json:"id"`
	OfferID  int64  `json:"offer_id"`
	ImageURL string `json:"image_url"`
	Position int    `json:"position"`
}

type TutorialVideo struct {
	ID       int64  `json:"id"`
	OfferID  int64  `json:"offer_id"`
	Title    string `json:"title"`
	VideoURL string `json:"video_url"`
}
