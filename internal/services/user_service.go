package services

import (
	"context"

	"lumen_backend/internal/repositories"
	"lumen_backend/internal/services/dto"
	"lumen_backend/pkg/apperrors"
)

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*dto.ProfileResponse, error)
	UpdateSettings(ctx context.Context, userID string, req dto.UpdateSettingsRequest) (*dto.ProfileResponse, error)
}

type UserServiceImpl struct {
	repo repositories.AuthRepository
}

func NewUserService(repo repositories.AuthRepository) UserService {
	return &UserServiceImpl{repo: repo}
}

func (s *UserServiceImpl) GetProfile(ctx context.Context, userID string) (*dto.ProfileResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.NewNotFoundError("user", "User not found")
		}
		return nil, apperrors.InternalError(err)
	}

	profile := &dto.ProfileResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Plan:          string(user.Plan),
		EmailVerified: user.IsVerified(),
		Theme:         "system",
	}

	settings, err := s.repo.GetUserSettingsByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if settings != nil {
		profile.Theme = string(settings.Theme)
		profile.IsTwoFactorEnabled = settings.IsTwoFactorEnabled
	}
	return profile, nil
}

func (s *UserServiceImpl) UpdateSettings(ctx context.Context, userID string, req dto.UpdateSettingsRequest) (*dto.ProfileResponse, error) {
	updates := map[string]interface{}{}
	if req.Theme != nil {
		updates["theme"] = *req.Theme
	}
	if req.IsTwoFactorEnabled != nil {
		updates["is_two_factor_enabled"] = *req.IsTwoFactorEnabled
	}

	if len(updates) > 0 {
		if err := s.repo.UpdateUserSettings(ctx, userID, updates); err != nil {
			if apperrors.Is(err, repositories.ErrUserNotFound) {
				return nil, apperrors.NewNotFoundError("user", "User not found")
			}
			return nil, apperrors.InternalError(err)
		}
	}
	return s.GetProfile(ctx, userID)
}
