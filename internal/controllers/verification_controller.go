package controllers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/msdeveloper2k/cashback-zone/internal/dtos"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type VerificationController struct {
	phones   services.PhoneVerificationService
	emails   services.EmailVerificationService
	profiles services.ProfileService
}

func NewVerificationController(
	phones services.PhoneVerificationService,
	emails services.EmailVerificationService,
	profiles services.ProfileService,
) *VerificationController {
	return &VerificationController{phones: phones, emails: emails, profiles: profiles}
}

// -----------------------------------------------------------------------------
// POST /api/v1/profile/mobile
// -----------------------------------------------------------------------------
func (c *VerificationController) SetMobileHandler(w http.ResponseWriter, r *http.Request) {
	profile, ok := currentProfile(w, r, c.profiles)
	if !ok {
		return
	}
	var req dtos.MobileVerificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := c.phones.RequestMobileVerification(r.Context(), profile, req.MobileNumber)
	c.respondValidation(w, res, err)
}

// -----------------------------------------------------------------------------
// POST /api/v1/profile/mobile/retry
// -----------------------------------------------------------------------------
func (c *VerificationController) RetryMobileHandler(w http.ResponseWriter, r *http.Request) {
	profile, ok := currentProfile(w, r, c.profiles)
	if !ok {
		return
	}
	res, err := c.phones.RetryMobileVerification(r.Context(), profile)
	c.respondValidation(w, res, err)
}

// respondValidation: 200 verified, 202 deferred, 400 rejected.
func (c *VerificationController) respondValidation(w http.ResponseWriter, res services.ValidationResult, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidPhone):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPhone, res.Message, res, err)
	case err != nil:
		respondServiceError(w, err)
	case res.Reason == services.ReasonPending:
		utils.RespondWithJSON(w, http.StatusAccepted, res)
	default:
		utils.RespondWithJSON(w, http.StatusOK, res)
	}
}

// -----------------------------------------------------------------------------
// POST /api/v1/email/code
// -----------------------------------------------------------------------------
func (c *VerificationController) RequestEmailCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.EmailCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	challenge, err := c.emails.RequestEmailCode(r.Context(), req.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, challenge)
}

// -----------------------------------------------------------------------------
// POST /api/v1/email/code/verify
// -----------------------------------------------------------------------------
func (c *VerificationController) VerifyEmailCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.EmailCodeVerifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := c.emails.VerifyEmailCode(req.Token, req.Email, req.Code); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.EmailVerifiedResponse{Verified: true})
}

// -----------------------------------------------------------------------------
// GET /verify-email/{token}
// -----------------------------------------------------------------------------
func (c *VerificationController) VerifyEmailLinkHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := c.emails.VerifyEmailLink(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.EmailVerifiedResponse{
		Verified: true,
		UserID:   userID.String(),
	})
}

// -----------------------------------------------------------------------------
// POST /api/v1/email/verification/resend
// -----------------------------------------------------------------------------
func (c *VerificationController) ResendEmailLinkHandler(w http.ResponseWriter, r *http.Request) {
	profile, ok := currentProfile(w, r, c.profiles)
	if !ok {
		return
	}
	if err := c.emails.SendVerificationLink(r.Context(), profile); err != nil {
		respondServiceError(w, err)
		return
	}
	msg := "Verification email sent"
	if profile.EmailVerified {
		msg = "Email already verified"
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: msg})
}
