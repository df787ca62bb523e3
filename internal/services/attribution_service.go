package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/sirupsen/logrus"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/metrics"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// PostbackInput is the raw advertiser payload; the service owns validation.
type PostbackInput struct {
	APIKey     string
	ReferralID string
	State      string
}

// AttributionService tracks referral clicks and conversions.
type AttributionService interface {
	GetOrCreateReferral(ctx context.Context, offerID int64, promoter models.Promoter) (*models.Referral, error)
	GetReferral(ctx context.Context, referralID int64) (*models.Referral, error)

	// RecordClick counts at most one click per (referral, ip) per 24 hours.
	RecordClick(ctx context.Context, referralID int64, clientIP, sessionKey string) (bool, error)

	BuildRedirectURL(offer *models.Offer, referralID int64) (string, error)
	ShareURL(referralID int64) string

	Postback(ctx context.Context, in PostbackInput) (*models.Referral, error)
}

type attributionService struct {
	referrals   repositories.ReferralRepository
	policy      TransitionPolicy
	appURL      string
	postbackKey string
	now         func() time.Time
}

// NewAttributionService wires the engine. now may be nil.
func NewAttributionService(
	referrals repositories.ReferralRepository,
	cfg *config.Config,
	now func() time.Time,
) AttributionService {
	if now == nil {
		now = time.Now
	}
	policy := NewTransitionPolicy(cfg.LDFlag_StrictReferralTransitions)
	utils.Logger.Infof("Referral working_state transitions: %s", policy.Name())
	return &attributionService{
		referrals:   referrals,
		policy:      policy,
		appURL:      cfg.AppUrl,
		postbackKey: cfg.PostbackAPIKey,
		now:         now,
	}
}

func (s *attributionService) GetOrCreateReferral(
	ctx context.Context,
	offerID int64,
	promoter models.Promoter,
) (*models.Referral, error) {
	ref, err := s.referrals.GetOrCreate(ctx, offerID, promoter)
	if err != nil {
		return nil, fmt.Errorf("get or create referral for offer %d: %w", offerID, err)
	}
	if ref == nil {
		return nil, fmt.Errorf("referral for offer %d not found after insert", offerID)
	}
	return ref, nil
}

func (s *attributionService) GetReferral(ctx context.Context, referralID int64) (*models.Referral, error) {
	ref, err := s.referrals.GetByID(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, utils.ErrNotFound
	}
	return ref, nil
}

func (s *attributionService) RecordClick(
	ctx context.Context,
	referralID int64,
	clientIP, sessionKey string,
) (bool, error) {
	if clientIP == "" {
		clientIP = "unknown"
	}
	now := s.now()

	accepted, err := s.referrals.RecordClick(ctx, repositories.ClickUpdate{
		Click: models.ReferralClick{
			ReferralID: referralID,
			IPAddress:  clientIP,
			SessionKey: sessionKey,
			ClickedAt:  now,
		},
		Since:       now.Add(-constants.ClickDedupWindow),
		NextState:   models.WorkingStateClicked,
		AllowedFrom: sourcesFor(s.policy, models.WorkingStateClicked),
	})
	if err != nil {
		metrics.ReferralClicksTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("record click for referral %d: %w", referralID, err)
	}

	outcome := "accepted"
	if !accepted {
		outcome = "duplicate"
	}
	metrics.ReferralClicksTotal.WithLabelValues(outcome).Inc()
	utils.Logger.WithFields(logrus.Fields{
		"referral_id": referralID,
		"ip":          clientIP,
		"outcome":     outcome,
	}).Debug("Referral click processed")

	return accepted, nil
}

func (s *attributionService) BuildRedirectURL(offer *models.Offer, referralID int64) (string, error) {
	return BuildRedirectURL(offer, referralID)
}

func (s *attributionService) ShareURL(referralID int64) string {
	return ReferralShareURL(s.appURL, referralID)
}

func (s *attributionService) Postback(ctx context.Context, in PostbackInput) (*models.Referral, error) {
	if s.postbackKey == "" || subtle.ConstantTimeCompare([]byte(in.APIKey), []byte(s.postbackKey)) != 1 {
		return nil, utils.ErrInvalidAPIKey
	}

	referralID, err := strconv.ParseInt(strings.TrimSpace(in.ReferralID), 10, 64)
	if err != nil || referralID <= 0 {
		return nil, fmt.Errorf("%w: referral_id must be a positive integer", utils.ErrInvalidPayload)
	}

	rawState := strings.ToLower(strings.TrimSpace(in.State))
	if rawState == "" {
		// Advertisers that only ping get the historical behaviour.
		rawState = string(models.WorkingStateClicked)
	}
	state, err := models.ParseWorkingState(rawState)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidState, err)
	}

	var updated *models.Referral
	err = s.referrals.UpdateWithRetry(ctx, referralID, func(ref *models.Referral) error {
		if !s.policy.Allowed(ref.WorkingState, state) {
			return fmt.Errorf("%w: %s -> %s", utils.ErrTransitionNotAllowed, ref.WorkingState, state)
		}
		ref.WorkingState = state
		ref.ClickCount++
		updated = ref
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown referral_id %d", utils.ErrNotFound, referralID)
		}
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"referral_id":   referralID,
		"working_state": state,
		"click_count":   updated.ClickCount,
	}).Info("Postback applied")
	return updated, nil
}

// PostbackStatus maps a Postback error onto the advertiser-facing status.
func PostbackStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, utils.ErrInvalidAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, utils.ErrInvalidPayload),
		errors.Is(err, utils.ErrInvalidState),
		errors.Is(err, utils.ErrNotFound):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrTransitionNotAllowed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
