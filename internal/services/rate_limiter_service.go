package services

import (
	"context"
	"fmt"
	"time"

	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// RateLimiterService provides a high-level interface for checking rate limits.
type RateLimiterService interface {
	CheckGrabOfferRateLimit(ctx context.Context, ip string) error
}

type rateLimiterService struct {
	repo   repositories.RateLimitRepository
	limit  int
	window time.Duration
}

func NewRateLimiterService(repo repositories.RateLimitRepository, cfg *config.Config) RateLimiterService {
	return &rateLimiterService{repo: repo, limit: cfg.GrabOfferLimitPerIP, window: cfg.GrabOfferWindow}
}

// CheckGrabOfferRateLimit checks the per-IP limit on offer grabs.
func (s *rateLimiterService) CheckGrabOfferRateLimit(ctx context.Context, ip string) error {
	ipKey := fmt.Sprintf("grab:ip:%s", ip)
	allowed, err := s.repo.IncrementAndCheck(ctx, ipKey, s.limit, s.window)
	if err != nil {
		return err
	}
	if !allowed {
		utils.Logger.Warnf("Per-IP grab offer rate limit exceeded (key: %s)", ipKey)
		return utils.ErrRateLimitExceeded
	}
	return nil
}
