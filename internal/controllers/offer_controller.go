package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/msdeveloper2k/cashback-zone/internal/dtos"
	"github.com/msdeveloper2k/cashback-zone/internal/metrics"
	"github.com/msdeveloper2k/cashback-zone/internal/middleware"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type OfferController struct {
	offers   services.OfferService
	profiles services.ProfileService
}

func NewOfferController(o services.OfferService, p services.ProfileService) *OfferController {
	return &OfferController{offers: o, profiles: p}
}

// -----------------------------------------------------------------------------
// GET /api/v1/offers
// -----------------------------------------------------------------------------
func (c *OfferController) ListOffersHandler(w http.ResponseWriter, r *http.Request) {
	offers, err := c.offers.ListOffers(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, offers)
}

// -----------------------------------------------------------------------------
// GET /api/v1/offers/{offer_id}
// -----------------------------------------------------------------------------
func (c *OfferController) OfferDetailHandler(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathInt64(w, r, "offer_id")
	if !ok {
		return
	}
	detail, err := c.offers.GetOfferDetail(r.Context(), offerID, promoterFrom(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, detail)
}

// -----------------------------------------------------------------------------
// GET /r/{referral_id}
// -----------------------------------------------------------------------------
func (c *OfferController) ReferralLandingHandler(w http.ResponseWriter, r *http.Request) {
	referralID, ok := pathInt64(w, r, "referral_id")
	if !ok {
		return
	}
	ref, err := c.offers.LandReferral(r.Context(), referralID, utils.ClientIP(r), middleware.VisitorFrom(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	target := fmt.Sprintf("/offers/%d?ref=%d", ref.OfferID, ref.ID)
	http.Redirect(w, r, target, http.StatusFound)
}

// -----------------------------------------------------------------------------
// GET /api/v1/offers/{offer_id}/grab
// -----------------------------------------------------------------------------
func (c *OfferController) PrepareGrabHandler(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathInt64(w, r, "offer_id")
	if !ok {
		return
	}
	challenge, err := c.offers.PrepareGrab(r.Context(), offerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, challenge)
}

// -----------------------------------------------------------------------------
// POST /api/v1/offers/{offer_id}/grab
// -----------------------------------------------------------------------------
func (c *OfferController) GrabOfferHandler(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathInt64(w, r, "offer_id")
	if !ok {
		return
	}
	var req dtos.GrabOfferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := services.GrabOfferInput{
		OfferID:       offerID,
		Promoter:      promoterFrom(r),
		ReferralID:    req.ReferralID,
		ClientIP:      utils.ClientIP(r),
		SessionKey:    middleware.VisitorFrom(r.Context()),
		CaptchaToken:  req.CaptchaToken,
		CaptchaAnswer: req.CaptchaAnswer,
		Mobile:        req.Mobile,
	}
	if req.Contact != nil {
		in.Contact = &services.ContactInput{
			Name:   req.Contact.Name,
			Email:  req.Contact.Email,
			Mobile: req.Contact.Mobile,
		}
	}
	if _, signedIn := middleware.IdentityFrom(r.Context()); signedIn {
		profile, ok := currentProfile(w, r, c.profiles)
		if !ok {
			return
		}
		in.Profile = profile
	}

	res, err := c.offers.GrabOffer(r.Context(), in)
	if err != nil {
		metrics.OfferGrabsTotal.WithLabelValues("rejected").Inc()
		respondServiceError(w, err)
		return
	}
	metrics.OfferGrabsTotal.WithLabelValues("redirected").Inc()

	if wantsJSON(r) {
		utils.RespondWithJSON(w, http.StatusOK, res)
		return
	}
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// -----------------------------------------------------------------------------
// POST /api/v1/offers/{offer_id}/google-form/confirm
// -----------------------------------------------------------------------------
func (c *OfferController) ConfirmGoogleFormHandler(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathInt64(w, r, "offer_id")
	if !ok {
		return
	}
	sub, err := c.offers.ConfirmGoogleForm(r.Context(), offerID, promoterFrom(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.GoogleFormConfirmResponse{
		OfferID:   sub.OfferID,
		Submitted: sub.Submitted,
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
