package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPhone        = errors.New("invalid_phone")
	ErrEmailExists         = errors.New("email_exists")
	ErrPhoneExists         = errors.New("phone_exists")
	ErrVerificationPending = errors.New("verification_pending")
	ErrInvalidCaptcha      = errors.New("invalid_captcha")
	ErrInvalidToken        = errors.New("invalid_token")
	ErrInvalidAPIKey       = errors.New("invalid_api_key")
	ErrInvalidState        = errors.New("invalid_working_state")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidPayload      = errors.New("invalid_payload")

	// Optimistic locking
	ErrRowVersionConflict = errors.New("row_version_conflict")

	// Rate limiting
	ErrRateLimitExceeded = errors.New("rate_limit_exceeded")

	// Phone validation providers, mail transports
	ErrExternalServiceFailure = errors.New("external_service_failure")
	ErrQuotaExhausted         = errors.New("quota_exhausted")

	ErrTransitionNotAllowed = errors.New("transition_not_allowed")
	ErrNoRowsUpdated        = errors.New("no_rows_updated")
)

// AppError carries an HTTP status and public code from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
