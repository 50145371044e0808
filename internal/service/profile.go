package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/repository"
	"github.com/templui/twinboard/internal/validation"
)

var ErrInvalidPersonality = errors.New("invalid personality")

type ProfileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
	}
}

func (s *ProfileService) ByUserID(userID string) (*model.Profile, error) {
	return s.profileRepo.ByUserID(userID)
}

// SavePersonality upserts the caller's draft profile. Saving again after a
// commit puts the profile back into draft.
func (s *ProfileService) SavePersonality(ctx context.Context, userID string, req model.SavePersonalityRequest) (*model.Profile, error) {
	personality, err := validation.NormalizePersonality(req.Personality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPersonality, err)
	}
	err = validation.ValidatePersonality(personality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPersonality, err)
	}

	profile := &model.Profile{
		UserID:         userID,
		DisplayName:    personality.DisplayName,
		Bio:            personality.Bio,
		Tone:           personality.Tone,
		Traits:         personality.Traits,
		Languages:      personality.Languages,
		ConsentVersion: req.ConsentVersion,
	}
	err = s.profileRepo.Save(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}
