package services

import (
	"context"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
)

type ReferralView struct {
	*models.Referral
	ShareURL string `json:"share_url"`
}

type Dashboard struct {
	Profile             *models.UserProfile  `json:"profile"`
	Referrals           []ReferralView       `json:"referrals"`
	Stats               models.ReferralStats `json:"stats"`
	PendingVerification bool                 `json:"pending_verification"`

	// Staff only.
	Providers  []ProviderStatus `json:"providers,omitempty"`
	RecentLogs []*models.APILog `json:"recent_api_logs,omitempty"`
}

type DashboardService interface {
	GetDashboard(ctx context.Context, profile *models.UserProfile, staff bool) (*Dashboard, error)
}

type dashboardService struct {
	referrals   repositories.ReferralRepository
	apiLogs     repositories.APILogRepository
	attribution AttributionService
	phones      PhoneVerificationService
}

func NewDashboardService(
	referrals repositories.ReferralRepository,
	apiLogs repositories.APILogRepository,
	attribution AttributionService,
	phones PhoneVerificationService,
) DashboardService {
	return &dashboardService{
		referrals:   referrals,
		apiLogs:     apiLogs,
		attribution: attribution,
		phones:      phones,
	}
}

func (s *dashboardService) GetDashboard(
	ctx context.Context,
	profile *models.UserProfile,
	staff bool,
) (*Dashboard, error) {
	refs, err := s.referrals.ListByUser(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	stats, err := s.referrals.StatsByUser(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	pending, err := s.phones.HasPendingVerification(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]ReferralView, 0, len(refs))
	for _, r := range refs {
		views = append(views, ReferralView{Referral: r, ShareURL: s.attribution.ShareURL(r.ID)})
	}

	d := &Dashboard{
		Profile:             profile,
		Referrals:           views,
		Stats:               stats,
		PendingVerification: pending,
	}

	if staff {
		if d.Providers, err = s.phones.ProviderStatus(ctx); err != nil {
			return nil, err
		}
		if d.RecentLogs, err = s.apiLogs.ListRecent(ctx, constants.DashboardRecentLogCount); err != nil {
			return nil, err
		}
	}
	return d, nil
}
