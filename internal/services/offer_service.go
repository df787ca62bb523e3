package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type OfferDetail struct {
	Offer          *models.Offer           `json:"offer"`
	Banners        []*models.AdBanner      `json:"banners"`
	TutorialVideos []*models.TutorialVideo `json:"tutorial_videos"`
	ReferralID     int64                   `json:"referral_id"`
	ShareURL       string                  `json:"share_url"`
}

// GrabChallenge is what the grab page needs before the visitor submits.
type GrabChallenge struct {
	OfferID             int64             `json:"offer_id"`
	Captcha             *CaptchaChallenge `json:"captcha"`
	RequiresContactInfo bool              `json:"requires_contact_info"`
	RequiresGoogleForm  bool              `json:"requires_google_form"`
	GoogleFormURL       string            `json:"google_form_url,omitempty"`
}

type ContactInput struct {
	Name   string
	Email  string
	Mobile string
}

type GrabOfferInput struct {
	OfferID  int64
	Promoter models.Promoter
	// Profile is set for signed-in users.
	Profile *models.UserProfile
	// ReferralID is the shared referral the visitor arrived through, if any.
	ReferralID    int64
	ClientIP      string
	SessionKey    string
	CaptchaToken  string
	CaptchaAnswer string
	Contact       *ContactInput
	Mobile        string
}

type GrabOfferResult struct {
	RedirectURL  string            `json:"redirect_url"`
	ReferralID   int64             `json:"referral_id"`
	ClickCounted bool              `json:"click_counted"`
	Mobile       *ValidationResult `json:"mobile,omitempty"`
}

type OfferService interface {
	ListOffers(ctx context.Context) ([]*models.Offer, error)
	GetOfferDetail(ctx context.Context, offerID int64, promoter models.Promoter) (*OfferDetail, error)

	// LandReferral records a click on a shared link and returns the offer it
	// points to.
	LandReferral(ctx context.Context, referralID int64, clientIP, sessionKey string) (*models.Referral, error)

	PrepareGrab(ctx context.Context, offerID int64) (*GrabChallenge, error)
	GrabOffer(ctx context.Context, in GrabOfferInput) (*GrabOfferResult, error)

	ConfirmGoogleForm(ctx context.Context, offerID int64, promoter models.Promoter) (*models.GoogleFormSubmission, error)
}

type offerService struct {
	offers      repositories.OfferRepository
	contacts    repositories.ContactInfoRepository
	googleForms repositories.GoogleFormRepository
	attribution AttributionService
	phones      PhoneVerificationService
	captcha     CaptchaService
	rateLimiter RateLimiterService
	now         func() time.Time
}

func NewOfferService(
	offers repositories.OfferRepository,
	contacts repositories.ContactInfoRepository,
	googleForms repositories.GoogleFormRepository,
	attribution AttributionService,
	phones PhoneVerificationService,
	captcha CaptchaService,
	rateLimiter RateLimiterService,
	now func() time.Time,
) OfferService {
	if now == nil {
		now = time.Now
	}
	return &offerService{
		offers:      offers,
		contacts:    contacts,
		googleForms: googleForms,
		attribution: attribution,
		phones:      phones,
		captcha:     captcha,
		rateLimiter: rateLimiter,
		now:         now,
	}
}

func (s *offerService) ListOffers(ctx context.Context) ([]*models.Offer, error) {
	offers, err := s.offers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if offers == nil {
		offers = []*models.Offer{}
	}
	return offers, nil
}

func (s *offerService) activeOffer(ctx context.Context, offerID int64) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil || !offer.IsActive() {
		return nil, utils.ErrNotFound
	}
	return offer, nil
}

func (s *offerService) GetOfferDetail(
	ctx context.Context,
	offerID int64,
	promoter models.Promoter,
) (*OfferDetail, error) {
	offer, err := s.activeOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	banners, err := s.offers.ListBanners(ctx, offerID)
	if err != nil {
		return nil, err
	}
	videos, err := s.offers.ListTutorialVideos(ctx, offerID)
	if err != nil {
		return nil, err
	}

	ref, err := s.attribution.GetOrCreateReferral(ctx, offerID, promoter)
	if err != nil {
		return nil, err
	}

	return &OfferDetail{
		Offer:          offer,
		Banners:        banners,
		TutorialVideos: videos,
		ReferralID:     ref.ID,
		ShareURL:       s.attribution.ShareURL(ref.ID),
	}, nil
}

func (s *offerService) LandReferral(
	ctx context.Context,
	referralID int64,
	clientIP, sessionKey string,
) (*models.Referral, error) {
	ref, err := s.attribution.GetReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if _, err := s.attribution.RecordClick(ctx, ref.ID, clientIP, sessionKey); err != nil {
		// The visitor still gets to the offer.
		utils.Logger.WithError(err).Errorf("Failed to record landing click for referral %d", ref.ID)
	}
	return ref, nil
}

func (s *offerService) PrepareGrab(ctx context.Context, offerID int64) (*GrabChallenge, error) {
	offer, err := s.activeOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	challenge, err := s.captcha.Issue()
	if err != nil {
		return nil, err
	}
	return &GrabChallenge{
		OfferID:             offer.ID,
		Captcha:             challenge,
		RequiresContactInfo: offer.RequiresContactInfo,
		RequiresGoogleForm:  offer.RequiresGoogleForm,
		GoogleFormURL:       offer.GoogleFormURL,
	}, nil
}

func (s *offerService) GrabOffer(ctx context.Context, in GrabOfferInput) (*GrabOfferResult, error) {
	if err := s.rateLimiter.CheckGrabOfferRateLimit(ctx, in.ClientIP); err != nil {
		return nil, err
	}
	if err := s.captcha.Check(in.CaptchaToken, in.CaptchaAnswer); err != nil {
		return nil, err
	}

	offer, err := s.activeOffer(ctx, in.OfferID)
	if err != nil {
		return nil, err
	}

	ref, err := s.resolveReferral(ctx, offer.ID, in)
	if err != nil {
		return nil, err
	}

	if offer.RequiresContactInfo {
		if err := s.saveContact(ctx, offer.ID, ref.ID, in); err != nil {
			return nil, err
		}
	}

	result := &GrabOfferResult{ReferralID: ref.ID}

	if in.Profile != nil && strings.TrimSpace(in.Mobile) != "" {
		res, err := s.phones.RequestMobileVerification(ctx, in.Profile, in.Mobile)
		if err != nil {
			return nil, err
		}
		result.Mobile = &res
	}

	counted, err := s.attribution.RecordClick(ctx, ref.ID, in.ClientIP, in.SessionKey)
	if err != nil {
		return nil, err
	}
	result.ClickCounted = counted

	redirect, err := s.attribution.BuildRedirectURL(offer, ref.ID)
	if err != nil {
		return nil, err
	}
	result.RedirectURL = redirect

	utils.Logger.WithFields(logrus.Fields{
		"offer_id":    offer.ID,
		"referral_id": ref.ID,
		"counted":     counted,
	}).Info("Offer grabbed")
	return result, nil
}

// resolveReferral credits the shared referral the visitor came through when
// it belongs to this offer, otherwise the grabber's own referral.
func (s *offerService) resolveReferral(ctx context.Context, offerID int64, in GrabOfferInput) (*models.Referral, error) {
	if in.ReferralID > 0 {
		ref, err := s.attribution.GetReferral(ctx, in.ReferralID)
		switch {
		case err == nil && ref.OfferID == offerID:
			return ref, nil
		case err != nil && !errors.Is(err, utils.ErrNotFound):
			return nil, err
		}
	}
	return s.attribution.GetOrCreateReferral(ctx, offerID, in.Promoter)
}

func (s *offerService) saveContact(ctx context.Context, offerID, referralID int64, in GrabOfferInput) error {
	if in.Contact == nil {
		return fmt.Errorf("%w: contact information is required for this offer", utils.ErrInvalidPayload)
	}
	email := strings.ToLower(strings.TrimSpace(in.Contact.Email))
	mobile := utils.NormalizeMobile(in.Contact.Mobile)
	if strings.TrimSpace(in.Contact.Name) == "" {
		return fmt.Errorf("%w: name is required", utils.ErrInvalidPayload)
	}
	if !utils.IsValidEmailSyntax(email) {
		return utils.ErrInvalidEmail
	}
	if !utils.IsMobileFormat(mobile) {
		return utils.ErrInvalidPhone
	}

	refID := referralID
	return s.contacts.Create(ctx, &models.ContactInfo{
		UserID:     in.Promoter.UserID,
		OfferID:    offerID,
		ReferralID: &refID,
		Name:       strings.TrimSpace(in.Contact.Name),
		Email:      email,
		Mobile:     mobile,
		VisitorID:  in.Promoter.VisitorID,
		CreatedAt:  s.now(),
	})
}

func (s *offerService) ConfirmGoogleForm(
	ctx context.Context,
	offerID int64,
	promoter models.Promoter,
) (*models.GoogleFormSubmission, error) {
	offer, err := s.activeOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.RequiresGoogleForm {
		return nil, fmt.Errorf("%w: offer has no google form", utils.ErrInvalidPayload)
	}
	if promoter.IsAnonymous() && promoter.VisitorID == "" {
		return nil, fmt.Errorf("%w: missing visitor", utils.ErrInvalidPayload)
	}
	return s.googleForms.MarkSubmitted(ctx, offerID, promoter)
}
