package storage

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

// CreateUser inserts a new account. Email and username (case-insensitive)
// must both be unused.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	user.UsernameKey = models.UsernameKey(user.Username)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Integrity(apperrors.CodeEmailInUse, "email already registered")
		}
		if err := tx.Model(&models.User{}).Where("username_key = ?", user.UsernameKey).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Integrity(apperrors.CodeUsernameTaken, "username already taken")
		}
		return tx.Create(user).Error
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrIntegrity):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// lost a race against a concurrent registration
		return apperrors.Integrity(apperrors.CodeUsernameTaken, "username already taken")
	default:
		s.log.Error().Err(err).Msg("failed to create user")
		return apperrors.Transient("registration", err)
	}
}

func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", userID)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *Service) findUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where(query, arg).First(&user).Error
	if isNotFound(err) {
		return nil, apperrors.NotFound("user", arg)
	}
	if err != nil {
		return nil, apperrors.Transient("user lookup", err)
	}
	return &user, nil
}

// UpdateProfile changes only the fields set in update.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	fields := map[string]interface{}{}
	if update.Gender != nil {
		fields["gender"] = *update.Gender
	}
	if update.Major != nil {
		fields["major"] = *update.Major
	}
	if update.Bio != nil {
		fields["bio"] = *update.Bio
	}

	if len(fields) > 0 {
		res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
		if res.Error != nil {
			return nil, apperrors.Transient("profile update", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, apperrors.NotFound("user", userID)
		}
	}
	return s.GetUser(ctx, userID)
}

// SetShadowBan hides (or unhides) future posts of a user. Existing posts keep
// their flag.
func (s *Service) SetShadowBan(ctx context.Context, userID string, banned bool) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_shadow_banned", banned)
	if res.Error != nil {
		return apperrors.Transient("shadow ban", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("user", userID)
	}
	return nil
}
