package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/middleware"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

var validate = validator.New()

// decodeAndValidate writes the 400 itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err,
		)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeValidation, "Missing or malformed fields", nil, err,
		)
		return false
	}
	return true
}

// currentProfile loads the local profile for the authenticated identity.
func currentProfile(w http.ResponseWriter, r *http.Request, profiles services.ProfileService) (*models.UserProfile, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authentication required", nil)
		return nil, false
	}
	p, err := profiles.EnsureProfile(r.Context(), id.UserID, id.Username, id.Email)
	if err != nil {
		utils.Logger.WithError(err).WithField("user_id", id.UserID).Error("Failed to load profile")
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to load profile", nil, err)
		return nil, false
	}
	return p, true
}

// pathInt64 parses a positive integer mux variable.
func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid "+name, nil, err,
		)
		return 0, false
	}
	return n, true
}

// promoterFrom prefers the signed-in user and falls back to the visitor cookie.
func promoterFrom(r *http.Request) models.Promoter {
	if id, ok := middleware.IdentityFrom(r.Context()); ok {
		uid := id.UserID
		return models.Promoter{UserID: &uid, VisitorID: middleware.VisitorFrom(r.Context())}
	}
	return models.Promoter{VisitorID: middleware.VisitorFrom(r.Context())}
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var serviceErrors = []errorMapping{
	{utils.ErrInvalidPayload, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request"},
	{utils.ErrInvalidEmail, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid email address"},
	{utils.ErrInvalidPhone, http.StatusBadRequest, utils.ErrCodeInvalidPhone, constants.MsgMobileInvalid},
	{utils.ErrEmailExists, http.StatusConflict, utils.ErrCodeEmailExists, constants.MsgEmailAlreadyInUse},
	{utils.ErrPhoneExists, http.StatusConflict, utils.ErrCodePhoneExists, constants.MsgMobileAlreadyInUse},
	{utils.ErrInvalidCaptcha, http.StatusBadRequest, utils.ErrCodeInvalidCaptcha, constants.MsgCaptchaFailed},
	{utils.ErrInvalidToken, http.StatusBadRequest, utils.ErrCodeInvalidToken, "Invalid or expired token"},
	{utils.ErrInvalidAPIKey, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid API key"},
	{utils.ErrInvalidState, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid working state"},
	{utils.ErrVerificationPending, http.StatusAccepted, utils.ErrCodeVerificationPending, constants.MsgPendingAPILimits},
	{utils.ErrRateLimitExceeded, http.StatusTooManyRequests, utils.ErrCodeRateLimitExceeded, "Too many requests, try again later"},
	{utils.ErrNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Not found"},
	{utils.ErrRowVersionConflict, http.StatusConflict, utils.ErrCodeRowVersionConflict, "Resource was modified concurrently"},
	{utils.ErrTransitionNotAllowed, http.StatusConflict, utils.ErrCodeConflict, "Transition not allowed"},
	{utils.ErrExternalServiceFailure, http.StatusBadGateway, utils.ErrCodeExternalServiceFailure, "Upstream service failed"},
}

// respondServiceError maps domain errors onto the public error envelope.
func respondServiceError(w http.ResponseWriter, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			utils.RespondErrorWithCode(w, m.status, m.code, m.message, nil, err)
			return
		}
	}
	utils.HandleAppError(w, err)
}
