package services

import (
	"context"
	"time"

	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// MaintenanceService prunes expired rate limit keys and old api logs.
type MaintenanceService interface {
	CleanupRateLimits(ctx context.Context) error
	PruneAPILogs(ctx context.Context) error
}

type maintenanceService struct {
	rateLimits    repositories.RateLimitRepository
	apiLogs       repositories.APILogRepository
	retentionDays int
	now           func() time.Time
}

func NewMaintenanceService(
	rateLimits repositories.RateLimitRepository,
	apiLogs repositories.APILogRepository,
	retentionDays int,
	now func() time.Time,
) MaintenanceService {
	if now == nil {
		now = time.Now
	}
	return &maintenanceService{
		rateLimits:    rateLimits,
		apiLogs:       apiLogs,
		retentionDays: retentionDays,
		now:           now,
	}
}

func (s *maintenanceService) CleanupRateLimits(ctx context.Context) error {
	logger := utils.Logger

	n, err := s.rateLimits.CleanupExpired(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to cleanup expired rate_limit_attempts")
		return err
	}

	logger.Infof("Daily rate limit counter cleanup completed; removed %d keys.", n)
	return nil
}

// PruneAPILogs deletes api_logs older than the retention window. A
// non-positive retention keeps everything.
func (s *maintenanceService) PruneAPILogs(ctx context.Context) error {
	if s.retentionDays <= 0 {
		return nil
	}
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)

	n, err := s.apiLogs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		utils.Logger.WithError(err).Error("Failed to prune api_logs")
		return err
	}
	utils.Logger.Infof("Pruned %d api_logs older than %s", n, cutoff.Format(time.RFC3339))
	return nil
}
