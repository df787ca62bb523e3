package dtos

type MobileVerificationRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required"`
}

type EmailCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type EmailCodeVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
	Token string `json:"token" validate:"required"`
}

type EmailVerifiedResponse struct {
	Verified bool   `json:"verified"`
	UserID   string `json:"user_id,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
