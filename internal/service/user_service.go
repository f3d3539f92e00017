package service

import (
	"context"
	"log/slog"
	"strings"

	"huddle/internal/models"
	"huddle/internal/observability"
	"huddle/internal/repository"
	"huddle/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
}

type UpdateProfileInput struct {
	UserID      uint
	Username    *string
	Avatar      *string
	Description *string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Profile returns the public view of another user.
func (s *UserService) Profile(ctx context.Context, userID uint) (models.Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	return user.AsProfile(), nil
}

func (s *UserService) UpdateMe(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if !strings.EqualFold(username, user.Username) {
			taken, err := s.userRepo.UsernameTaken(ctx, username, user.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, models.NewConflictError("username already taken")
			}
		}
		user.Username = username
	}
	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		if avatar != "" {
			if err := validation.ValidateAvatarURL(avatar); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
		}
		user.Avatar = avatar
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if err := validation.ValidateUserDescription(description); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Description = description
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes userID with everything they created. Counters of the
// posts they liked drop by one in the same transaction.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	observability.Logger.InfoContext(ctx, "user_deleted", slog.Uint64("user_id", uint64(userID)))
	return nil
}
