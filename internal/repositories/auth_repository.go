package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lumen_backend/internal/models"
)

// AuthRepository persists users, settings and the one-shot token tables.
// WithTx scopes a group of calls to a single database transaction so a crash
// mid-sequence cannot leave a dangling or duplicate token.
type AuthRepository interface {
	WithTx(ctx context.Context, fn func(AuthRepository) error) error

	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error

	CreateUserSettings(ctx context.Context, settings *models.UserSettings) error
	GetUserSettingsByUserID(ctx context.Context, userID string) (*models.UserSettings, error)
	UpdateUserSettings(ctx context.Context, userID string, updates map[string]interface{}) error

	UpsertVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetVerificationTokenByUserID(ctx context.Context, userID string) (*models.VerificationToken, error)
	GetVerificationTokenByToken(ctx context.Context, token string) (*models.VerificationToken, error)
	DeleteVerificationTokenByToken(ctx context.Context, token string) error

	UpsertResetPasswordToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetResetPasswordTokenByToken(ctx context.Context, token string) (*models.ResetPasswordToken, error)
	DeleteResetPasswordTokenByToken(ctx context.Context, token string) error

	UpsertTwoFactorToken(ctx context.Context, email, token string, expiresAt time.Time) error
	GetTwoFactorTokenByEmail(ctx context.Context, email string) (*models.TwoFactorToken, error)
	DeleteTwoFactorTokenByToken(ctx context.Context, token string) error

	CreateTwoFactorConfirmation(ctx context.Context, userID string) error
	GetTwoFactorConfirmationByUserID(ctx context.Context, userID string) (*models.TwoFactorConfirmation, error)
	DeleteTwoFactorConfirmation(ctx context.Context, id string) error
}

type AuthRepositoryImpl struct {
	db *gorm.DB
}

func NewAuthRepository(db *gorm.DB) AuthRepository {
	return &AuthRepositoryImpl{db: db}
}

func (r *AuthRepositoryImpl) WithTx(ctx context.Context, fn func(AuthRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AuthRepositoryImpl{db: tx})
	})
}

// --- Users ---

func (r *AuthRepositoryImpl) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *AuthRepositoryImpl) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *AuthRepositoryImpl) CreateUser(ctx context.Context, user *models.User) error {
	var existing models.User
	if err := r.db.WithContext(ctx).Select("id").First(&existing, "email = ?", user.Email).Error; err == nil {
		return ErrUserAlreadyExists
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *AuthRepositoryImpl) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *AuthRepositoryImpl) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("email_verified", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// --- User settings ---

func (r *AuthRepositoryImpl) CreateUserSettings(ctx context.Context, settings *models.UserSettings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

// GetUserSettingsByUserID returns nil, nil when the user has no settings
// row; callers fall back to defaults.
func (r *AuthRepositoryImpl) GetUserSettingsByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := r.db.WithContext(ctx).First(&settings, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *AuthRepositoryImpl) UpdateUserSettings(ctx context.Context, userID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.UserSettings{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// --- Verification tokens ---

func (r *AuthRepositoryImpl) UpsertVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	record := models.VerificationToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	// At most one live token per user.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
	}).Create(&record).Error
}

func (r *AuthRepositoryImpl) GetVerificationTokenByUserID(ctx context.Context, userID string) (*models.VerificationToken, error) {
	var record models.VerificationToken
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *AuthRepositoryImpl) GetVerificationTokenByToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	var record models.VerificationToken
	err := r.db.WithContext(ctx).First(&record, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *AuthRepositoryImpl) DeleteVerificationTokenByToken(ctx context.Context, token string) error {
	result := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.VerificationToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// --- Reset-password tokens ---

func (r *AuthRepositoryImpl) UpsertResetPasswordToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	record := models.ResetPasswordToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
	}).Create(&record).Error
}

func (r *AuthRepositoryImpl) GetResetPasswordTokenByToken(ctx context.Context, token string) (*models.ResetPasswordToken, error) {
	var record models.ResetPasswordToken
	err := r.db.WithContext(ctx).First(&record, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *AuthRepositoryImpl) DeleteResetPasswordTokenByToken(ctx context.Context, token string) error {
	result := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.ResetPasswordToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// --- Two-factor tokens ---

func (r *AuthRepositoryImpl) UpsertTwoFactorToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	record := models.TwoFactorToken{
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
	}).Create(&record).Error
}

func (r *AuthRepositoryImpl) GetTwoFactorTokenByEmail(ctx context.Context, email string) (*models.TwoFactorToken, error) {
	var record models.TwoFactorToken
	err := r.db.WithContext(ctx).First(&record, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &record, nil
}

// DeleteTwoFactorTokenByToken is a conditional delete: only one concurrent
// consumer can see RowsAffected == 1, which makes code consumption single-use
// across server instances.
func (r *AuthRepositoryImpl) DeleteTwoFactorTokenByToken(ctx context.Context, token string) error {
	result := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.TwoFactorToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// --- Two-factor confirmations ---

func (r *AuthRepositoryImpl) CreateTwoFactorConfirmation(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Create(&models.TwoFactorConfirmation{UserID: userID}).Error
}

func (r *AuthRepositoryImpl) GetTwoFactorConfirmationByUserID(ctx context.Context, userID string) (*models.TwoFactorConfirmation, error) {
	var record models.TwoFactorConfirmation
	err := r.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfirmationNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *AuthRepositoryImpl) DeleteTwoFactorConfirmation(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TwoFactorConfirmation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConfirmationNotFound
	}
	return nil
}
