package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/metrics"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/providers"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type ValidationReason string

const (
	ReasonValid   ValidationReason = "valid"
	ReasonInvalid ValidationReason = "invalid"
	ReasonPending ValidationReason = "pending"
)

// ValidationResult is the outcome of one validate call. A pending result
// means no provider could answer, not that the number is bad.
type ValidationResult struct {
	IsValid  bool             `json:"is_valid"`
	Reason   ValidationReason `json:"reason"`
	Message  string           `json:"message"`
	Provider string           `json:"provider,omitempty"`
	Cached   bool             `json:"cached"`
}

// ProviderSlot is one member of the fallback chain with its monthly limits.
type ProviderSlot struct {
	Validator    providers.PhoneValidator
	RequestLimit int
	FreeLimit    int
}

// NewProviderSlots pairs validators with their configured limits, keeping
// chain order.
func NewProviderSlots(cfg *config.Config, validators []providers.PhoneValidator) []ProviderSlot {
	limits := make(map[string]config.ProviderConfig)
	for _, p := range cfg.Providers() {
		limits[p.Name] = p
	}
	slots := make([]ProviderSlot, 0, len(validators))
	for _, v := range validators {
		p := limits[v.Name()]
		slots = append(slots, ProviderSlot{Validator: v, RequestLimit: p.RequestLimit, FreeLimit: p.FreeLimit})
	}
	return slots
}

type ProviderStatus struct {
	Name         string    `json:"name"`
	RequestCount int       `json:"request_count"`
	RequestLimit int       `json:"request_limit"`
	FreeLimit    int       `json:"free_limit"`
	Exhausted    bool      `json:"exhausted"`
	LastReset    time.Time `json:"last_reset"`
}

type BatchReport struct {
	Skipped      bool `json:"skipped"`
	Checked      int  `json:"checked"`
	Verified     int  `json:"verified"`
	Rejected     int  `json:"rejected"`
	StillPending int  `json:"still_pending"`
	// Superseded rows were valid but the user has since moved to another number.
	Superseded int `json:"superseded"`
}

// PhoneVerificationService validates mobile numbers through the provider
// chain and manages deferred verifications.
type PhoneVerificationService interface {
	Validate(ctx context.Context, number string) ValidationResult

	// RequestMobileVerification validates and stores a user's number. An
	// invalid number returns utils.ErrInvalidPhone; a pending result queues
	// the number and returns a nil error.
	RequestMobileVerification(ctx context.Context, profile *models.UserProfile, number string) (ValidationResult, error)
	RetryMobileVerification(ctx context.Context, profile *models.UserProfile) (ValidationResult, error)
	HasPendingVerification(ctx context.Context, userID uuid.UUID) (bool, error)

	ProcessPendingVerifications(ctx context.Context) (BatchReport, error)
	ProviderStatus(ctx context.Context) ([]ProviderStatus, error)
}

type phoneVerificationService struct {
	slots    []ProviderSlot
	cache    repositories.MobileValidationRepository
	usage    repositories.APIUsageRepository
	pending  repositories.PendingVerificationRepository
	apiLogs  repositories.APILogRepository
	profiles repositories.ProfileRepository
	mailer   Mailer
	now      func() time.Time
}

func NewPhoneVerificationService(
	slots []ProviderSlot,
	cache repositories.MobileValidationRepository,
	usage repositories.APIUsageRepository,
	pending repositories.PendingVerificationRepository,
	apiLogs repositories.APILogRepository,
	profiles repositories.ProfileRepository,
	mailer Mailer,
	now func() time.Time,
) PhoneVerificationService {
	if now == nil {
		now = time.Now
	}
	return &phoneVerificationService{
		slots:    slots,
		cache:    cache,
		usage:    usage,
		pending:  pending,
		apiLogs:  apiLogs,
		profiles: profiles,
		mailer:   mailer,
		now:      now,
	}
}

// ----------------------------------------------------------------------
// validate
// ----------------------------------------------------------------------

func (s *phoneVerificationService) Validate(ctx context.Context, number string) ValidationResult {
	if res, ok := s.cached(ctx, number); ok {
		return res
	}

	attempted := false
	for i, slot := range s.slots {
		name := slot.Validator.Name()

		if i > 0 {
			if res, ok := s.cached(ctx, number); ok {
				return res
			}
		}

		usage, err := s.loadUsage(ctx, name)
		if err != nil {
			utils.Logger.WithError(err).Errorf("Failed to load %s usage; skipping provider", name)
			s.logAPI(ctx, name, constants.LogLevelError, fmt.Sprintf("usage lookup failed: %v", err))
			continue
		}
		if usage.IsLimitExceeded(slot.RequestLimit, s.now()) {
			utils.Logger.Warnf("%s monthly limit reached (%d/%d)", name, usage.RequestCount, slot.RequestLimit)
			s.logAPI(ctx, name, constants.LogLevelWarning, fmt.Sprintf("API limit reached (%d/%d)", usage.RequestCount, slot.RequestLimit))
			metrics.PhoneValidationsTotal.WithLabelValues(name, "quota_exhausted").Inc()
			continue
		}

		attempted = true
		callCtx, cancel := context.WithTimeout(ctx, constants.ProviderTimeout)
		valid, err := slot.Validator.Validate(callCtx, number)
		cancel()
		if err != nil {
			utils.Logger.WithError(err).Warnf("%s validation failed for %s; falling back", name, number)
			s.logAPI(ctx, name, constants.LogLevelError, fmt.Sprintf("validation failed for %s: %v", number, err))
			metrics.PhoneValidationsTotal.WithLabelValues(name, "error").Inc()
			continue
		}

		usage.Increment(s.now())
		if err := s.usage.Save(ctx, usage); err != nil {
			utils.Logger.WithError(err).Errorf("Failed to save %s usage counter", name)
		}
		if err := s.cache.Save(ctx, number, valid, s.now()); err != nil {
			utils.Logger.WithError(err).Errorf("Failed to cache validation result for %s", number)
		}

		outcome := "invalid"
		if valid {
			outcome = "valid"
		}
		s.logAPI(ctx, name, constants.LogLevelInfo, fmt.Sprintf("validated %s: %s", number, outcome))
		metrics.PhoneValidationsTotal.WithLabelValues(name, outcome).Inc()
		return resultFor(valid, name, false)
	}

	msg := constants.MsgPendingAPILimits
	if attempted {
		msg = constants.MsgPendingAPIFailure
	}
	return ValidationResult{IsValid: false, Reason: ReasonPending, Message: msg}
}

func (s *phoneVerificationService) cached(ctx context.Context, number string) (ValidationResult, bool) {
	hit, err := s.cache.Get(ctx, number)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Validation cache lookup failed for %s", number)
		return ValidationResult{}, false
	}
	if hit == nil {
		return ValidationResult{}, false
	}
	metrics.PhoneValidationsTotal.WithLabelValues("cache", "cache_hit").Inc()
	return resultFor(hit.IsValid, "", true), true
}

// loadUsage fetches the counter and persists a lazy month rollover.
func (s *phoneVerificationService) loadUsage(ctx context.Context, name string) (*models.APIUsage, error) {
	now := s.now()
	usage, err := s.usage.GetOrCreate(ctx, name, now)
	if err != nil {
		return nil, err
	}
	if usage.Rollover(now) {
		if err := s.usage.Save(ctx, usage); err != nil {
			return nil, err
		}
		utils.Logger.Infof("Reset %s monthly usage counter", name)
	}
	return usage, nil
}

func (s *phoneVerificationService) logAPI(ctx context.Context, apiName, level, message string) {
	entry := &models.APILog{APIName: apiName, Message: message, Level: level, CreatedAt: s.now()}
	if err := s.apiLogs.Create(ctx, entry); err != nil {
		utils.Logger.WithError(err).Warn("Failed to write api log entry")
	}
}

func resultFor(valid bool, provider string, cached bool) ValidationResult {
	if valid {
		return ValidationResult{IsValid: true, Reason: ReasonValid, Message: constants.MsgMobileValid, Provider: provider, Cached: cached}
	}
	return ValidationResult{IsValid: false, Reason: ReasonInvalid, Message: constants.MsgMobileInvalid, Provider: provider, Cached: cached}
}

// ----------------------------------------------------------------------
// per-user verification
// ----------------------------------------------------------------------

func (s *phoneVerificationService) RequestMobileVerification(
	ctx context.Context,
	profile *models.UserProfile,
	number string,
) (ValidationResult, error) {
	number = utils.NormalizeMobile(number)
	if !utils.IsMobileFormat(number) {
		return ValidationResult{Reason: ReasonInvalid, Message: constants.MsgInvalidMobileFormat}, utils.ErrInvalidPhone
	}

	res := s.Validate(ctx, number)
	switch res.Reason {
	case ReasonValid:
		if err := s.profiles.SetMobile(ctx, profile.UserID, number, true); err != nil {
			return res, fmt.Errorf("mark mobile verified: %w", err)
		}
		if err := s.pending.CloseOpenForUser(ctx, profile.UserID, s.now()); err != nil {
			return res, fmt.Errorf("close superseded verification: %w", err)
		}
		return res, nil

	case ReasonInvalid:
		if err := s.pending.CloseOpenForUser(ctx, profile.UserID, s.now()); err != nil {
			return res, fmt.Errorf("close superseded verification: %w", err)
		}
		return res, utils.ErrInvalidPhone

	default:
		if err := s.profiles.SetMobile(ctx, profile.UserID, number, false); err != nil {
			return res, fmt.Errorf("store unverified mobile: %w", err)
		}
		created, err := s.pending.CreateIfNoneOpen(ctx, profile.UserID, number, s.now())
		if err != nil {
			return res, fmt.Errorf("queue pending verification: %w", err)
		}
		if !created {
			// The open row must track the number the user last asked for.
			if err := s.pending.UpdateOpenNumber(ctx, profile.UserID, number); err != nil {
				return res, fmt.Errorf("update pending verification: %w", err)
			}
		} else {
			utils.Logger.WithFields(logrus.Fields{
				"user_id": profile.UserID,
				"mobile":  number,
			}).Info("Mobile verification deferred")
			s.notify(ctx, profile.Email, constants.EmailSubjectMobilePending,
				fmt.Sprintf("We could not verify %s right now. We will retry automatically and email you once it is done.", number))
		}
		return res, nil
	}
}

func (s *phoneVerificationService) RetryMobileVerification(
	ctx context.Context,
	profile *models.UserProfile,
) (ValidationResult, error) {
	open, err := s.pending.GetOpenForUser(ctx, profile.UserID)
	if err != nil {
		return ValidationResult{}, err
	}
	if open == nil {
		return ValidationResult{}, fmt.Errorf("%w: %s", utils.ErrNotFound, constants.MsgVerificationNotPending)
	}

	res := s.Validate(ctx, open.MobileNumber)
	switch res.Reason {
	case ReasonValid:
		current, err := s.isCurrentNumber(ctx, profile.UserID, open.MobileNumber)
		if err != nil {
			return res, err
		}
		if current {
			if err := s.profiles.SetMobile(ctx, profile.UserID, open.MobileNumber, true); err != nil {
				return res, err
			}
		}
		return res, s.pending.MarkProcessed(ctx, open.ID, s.now())
	case ReasonInvalid:
		if err := s.pending.MarkProcessed(ctx, open.ID, s.now()); err != nil {
			return res, err
		}
		return res, utils.ErrInvalidPhone
	default:
		return res, nil
	}
}

func (s *phoneVerificationService) HasPendingVerification(ctx context.Context, userID uuid.UUID) (bool, error) {
	open, err := s.pending.GetOpenForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return open != nil, nil
}

// ----------------------------------------------------------------------
// batch reprocessing
// ----------------------------------------------------------------------

func (s *phoneVerificationService) ProcessPendingVerifications(ctx context.Context) (BatchReport, error) {
	var report BatchReport

	available, err := s.anyFreeQuota(ctx)
	if err != nil {
		return report, err
	}
	if !available {
		utils.Logger.Info("All phone providers are at their monthly limit; skipping pending verifications")
		metrics.PendingVerificationsTotal.WithLabelValues("skipped").Inc()
		report.Skipped = true
		return report, nil
	}

	rows, err := s.pending.ListOpen(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending verifications: %w", err)
	}

	for _, pv := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		res := s.Validate(ctx, pv.MobileNumber)
		switch res.Reason {
		case ReasonValid:
			applied, err := s.completeVerification(ctx, pv)
			if err != nil {
				utils.Logger.WithError(err).Errorf("Failed to complete pending verification %d", pv.ID)
				continue
			}
			if !applied {
				report.Superseded++
				metrics.PendingVerificationsTotal.WithLabelValues("superseded").Inc()
				continue
			}
			report.Verified++
			metrics.PendingVerificationsTotal.WithLabelValues("verified").Inc()
		case ReasonInvalid:
			if constants.CloseRejectedPendingVerifications {
				if err := s.pending.MarkProcessed(ctx, pv.ID, s.now()); err != nil {
					utils.Logger.WithError(err).Errorf("Failed to close pending verification %d", pv.ID)
					continue
				}
			}
			report.Rejected++
			metrics.PendingVerificationsTotal.WithLabelValues("rejected").Inc()
		default:
			report.StillPending++
			metrics.PendingVerificationsTotal.WithLabelValues("still_pending").Inc()
		}
	}

	utils.Logger.WithFields(logrus.Fields{
		"checked":       report.Checked,
		"verified":      report.Verified,
		"rejected":      report.Rejected,
		"still_pending": report.StillPending,
	}).Info("Processed pending verifications")
	return report, nil
}

// completeVerification marks the row processed and, when the queued number is
// still the one on the profile, marks the profile's mobile verified. It
// reports whether the profile was updated.
func (s *phoneVerificationService) completeVerification(ctx context.Context, pv *models.PendingVerification) (bool, error) {
	profile, err := s.profiles.GetByUserID(ctx, pv.UserID)
	if err != nil {
		return false, err
	}
	if profile == nil || !hasMobile(profile, pv.MobileNumber) {
		utils.Logger.WithField("user_id", pv.UserID).Infof("Pending number %s was replaced; closing without profile update", pv.MobileNumber)
		return false, s.pending.MarkProcessed(ctx, pv.ID, s.now())
	}

	if err := s.profiles.SetMobile(ctx, pv.UserID, pv.MobileNumber, true); err != nil {
		return false, err
	}
	if err := s.pending.MarkProcessed(ctx, pv.ID, s.now()); err != nil {
		return false, err
	}
	s.notify(ctx, profile.Email, constants.EmailSubjectMobileAvailable,
		fmt.Sprintf("Good news: your mobile number %s has been verified.", pv.MobileNumber))
	return true, nil
}

// isCurrentNumber reports whether number is still the mobile on the profile.
func (s *phoneVerificationService) isCurrentNumber(ctx context.Context, userID uuid.UUID, number string) (bool, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return profile != nil && hasMobile(profile, number), nil
}

func hasMobile(p *models.UserProfile, number string) bool {
	return p.MobileNumber != nil && *p.MobileNumber == number
}

// anyFreeQuota reports whether some provider is under both its free limit and
// its request limit, i.e. whether Validate could reach the network at all.
func (s *phoneVerificationService) anyFreeQuota(ctx context.Context) (bool, error) {
	var firstErr error
	for _, slot := range s.slots {
		usage, err := s.loadUsage(ctx, slot.Validator.Name())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		now := s.now()
		if !usage.IsLimitExceeded(slot.FreeLimit, now) && !usage.IsLimitExceeded(slot.RequestLimit, now) {
			return true, nil
		}
	}
	if firstErr != nil {
		return false, fmt.Errorf("check provider quotas: %w", firstErr)
	}
	return false, nil
}

func (s *phoneVerificationService) ProviderStatus(ctx context.Context) ([]ProviderStatus, error) {
	out := make([]ProviderStatus, 0, len(s.slots))
	for _, slot := range s.slots {
		usage, err := s.loadUsage(ctx, slot.Validator.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, ProviderStatus{
			Name:         usage.APIName,
			RequestCount: usage.RequestCount,
			RequestLimit: slot.RequestLimit,
			FreeLimit:    slot.FreeLimit,
			Exhausted:    usage.IsLimitExceeded(slot.RequestLimit, s.now()),
			LastReset:    usage.LastReset,
		})
	}
	return out, nil
}

func (s *phoneVerificationService) notify(ctx context.Context, to, subject, message string) {
	if to == "" {
		return
	}
	html := fmt.Sprintf(noticeEmailHTML, subject, message, s.now().Year())
	if err := s.mailer.Send(ctx, to, subject, message, html); err != nil {
		// Email is best effort; the state change already happened.
		if !errors.Is(err, context.Canceled) {
			utils.Logger.WithError(err).Errorf("Failed to send %q email to %s", subject, to)
		}
	}
}
