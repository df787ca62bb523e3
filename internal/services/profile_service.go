package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
)

// ProfileService keeps the local profile in step with the identity token.
type ProfileService interface {
	EnsureProfile(ctx context.Context, userID uuid.UUID, username, email string) (*models.UserProfile, error)
}

type profileService struct {
	profiles repositories.ProfileRepository
}

func NewProfileService(profiles repositories.ProfileRepository) ProfileService {
	return &profileService{profiles: profiles}
}

func (s *profileService) EnsureProfile(ctx context.Context, userID uuid.UUID, username, email string) (*models.UserProfile, error) {
	p, err := s.profiles.Ensure(ctx, userID, username, email)
	if err != nil {
		return nil, fmt.Errorf("ensure profile %s: %w", userID, err)
	}
	return p, nil
}
