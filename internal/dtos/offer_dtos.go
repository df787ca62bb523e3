package dtos

type HealthCheckResponse struct {
	Status string `json:"status"`
}

type ContactInfoRequest struct {
	Name   string `json:"name" validate:"required,max=120"`
	Email  string `json:"email" validate:"required,email"`
	Mobile string `json:"mobile" validate:"required"`
}

// GrabOfferRequest is the body of POST /api/v1/offers/{offer_id}/grab.
type GrabOfferRequest struct {
	CaptchaToken  string              `json:"captcha_token" validate:"required"`
	CaptchaAnswer string              `json:"captcha_answer" validate:"required"`
	ReferralID    int64               `json:"referral_id,omitempty" validate:"omitempty,gt=0"`
	Contact       *ContactInfoRequest `json:"contact,omitempty" validate:"omitempty"`
	Mobile        string              `json:"mobile,omitempty"`
}

type GoogleFormConfirmResponse struct {
	OfferID   int64 `json:"offer_id"`
	Submitted bool  `json:"submitted"`
}

type PostbackResponse struct {
	Status       string `json:"status"`
	ReferralID   int64  `json:"referral_id"`
	WorkingState string `json:"working_state"`
	ClickCount   int    `json:"click_count"`
}
