package services

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"
	"time"

	"lumen_backend/internal/auth"
	"lumen_backend/internal/cache"
	"lumen_backend/internal/config"
	"lumen_backend/internal/email"
	"lumen_backend/internal/logger"
	"lumen_backend/internal/models"
	"lumen_backend/internal/repositories"
	"lumen_backend/internal/services/dto"
	"lumen_backend/pkg/apperrors"
)

// Generic responses. Sign-up and forgot-password return the same message in
// every branch so callers cannot probe which emails are registered.
const (
	SignUpMessage         = "If your email is not registered, you will receive a verification email shortly"
	ForgotPasswordMessage = "If a matching account is found, a password reset email will be sent to you shortly"
)

type AuthService interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	VerifyEmail(ctx context.Context, token string) error
	SignIn(ctx context.Context, email, password, code string) (*dto.SignInResult, error)
	SignOut(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*dto.SignInResult, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type AuthServiceImpl struct {
	repo       repositories.AuthRepository
	revocation cache.RevocationList
	codec      *auth.TokenCodec
	mailer     email.Provider
	cfg        *config.Config
}

func NewAuthService(
	repo repositories.AuthRepository,
	revocation cache.RevocationList,
	codec *auth.TokenCodec,
	mailer email.Provider,
	cfg *config.Config,
) AuthService {
	return &AuthServiceImpl{
		repo:       repo,
		revocation: revocation,
		codec:      codec,
		mailer:     mailer,
		cfg:        cfg,
	}
}

func errInvalidCredentials() *apperrors.AppError {
	return apperrors.New(apperrors.CodeInvalidCredentials, "auth", "Invalid credentials", http.StatusUnauthorized)
}

func errInvalidToken() *apperrors.AppError {
	return apperrors.New(apperrors.CodeInvalidToken, "auth", "Invalid token", http.StatusBadRequest)
}

// SignUp registers a new account or refreshes a stale verification token.
// Every branch returns the same generic message.
func (s *AuthServiceImpl) SignUp(ctx context.Context, emailAddr, password string) (string, error) {
	existing, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil && !apperrors.Is(err, repositories.ErrUserNotFound) {
		return "", apperrors.InternalError(err)
	}

	if existing != nil {
		if existing.IsVerified() {
			// Registered and verified: nothing to send, same message.
			return SignUpMessage, nil
		}
		if err := s.reissueVerificationToken(ctx, existing); err != nil {
			return "", apperrors.InternalError(err)
		}
		return SignUpMessage, nil
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return "", apperrors.InternalError(err)
	}

	err = s.repo.WithTx(ctx, func(tx repositories.AuthRepository) error {
		user := &models.User{
			Email:        emailAddr,
			Name:         emailAddr,
			PasswordHash: &passwordHash,
			Plan:         models.PlanFree,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}

		if err := tx.CreateUserSettings(ctx, &models.UserSettings{
			UserID: user.ID,
			Theme:  models.ThemeSystem,
		}); err != nil {
			return err
		}

		token, err := auth.GenerateOpaqueToken(config.OpaqueTokenLength)
		if err != nil {
			return err
		}
		expiresAt := time.Now().Add(config.VerificationTokenTTL)
		if err := tx.UpsertVerificationToken(ctx, user.ID, token, expiresAt); err != nil {
			return err
		}

		return s.mailer.SendVerification(user.Email, user.Name, token)
	})
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserAlreadyExists) {
			// Raced with a concurrent sign-up; still the generic message.
			return SignUpMessage, nil
		}
		return "", apperrors.InternalError(err)
	}

	return SignUpMessage, nil
}

// reissueVerificationToken replaces the user's verification token and
// resends the email. The token is reissued whether or not the old one is
// still live: a silent no-op would leave the user with no usable link when
// the first email went missing.
func (s *AuthServiceImpl) reissueVerificationToken(ctx context.Context, user *models.User) error {
	existingToken, err := s.repo.GetVerificationTokenByUserID(ctx, user.ID)
	if err != nil && !apperrors.Is(err, repositories.ErrTokenNotFound) {
		return err
	}

	if existingToken != nil && !existingToken.Expired() {
		// Still live: resend the same link instead of minting a new one.
		return s.mailer.SendVerification(user.Email, user.Name, existingToken.Token)
	}

	return s.repo.WithTx(ctx, func(tx repositories.AuthRepository) error {
		token, err := auth.GenerateOpaqueToken(config.OpaqueTokenLength)
		if err != nil {
			return err
		}
		expiresAt := time.Now().Add(config.VerificationTokenTTL)
		if err := tx.UpsertVerificationToken(ctx, user.ID, token, expiresAt); err != nil {
			return err
		}
		return s.mailer.SendVerification(user.Email, user.Name, token)
	})
}

// VerifyEmail consumes a verification token. A consumed or expired token
// always fails with the same "Invalid token".
func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, token string) error {
	record, err := s.repo.GetVerificationTokenByToken(ctx, token)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTokenNotFound) {
			return errInvalidToken()
		}
		return apperrors.InternalError(err)
	}
	if record.Expired() {
		return errInvalidToken()
	}

	err = s.repo.WithTx(ctx, func(tx repositories.AuthRepository) error {
		if err := tx.MarkEmailVerified(ctx, record.UserID, time.Now()); err != nil {
			return err
		}
		return tx.DeleteVerificationTokenByToken(ctx, token)
	})
	if err != nil {
		if apperrors.Is(err, repositories.ErrTokenNotFound) {
			// Consumed concurrently.
			return errInvalidToken()
		}
		return apperrors.InternalError(err)
	}
	return nil
}

// SignIn authenticates a user with an optional two-factor step-up and
// issues a fresh session. All credential failures collapse into the same
// Unauthorized message.
func (s *AuthServiceImpl) SignIn(ctx context.Context, emailAddr, password, code string) (*dto.SignInResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, apperrors.InternalError(err)
	}

	if !user.IsVerified() || user.PasswordHash == nil {
		return nil, errInvalidCredentials()
	}

	if !auth.CheckPasswordHash(password, *user.PasswordHash) {
		return nil, errInvalidCredentials()
	}

	settings, err := s.repo.GetUserSettingsByUserID(ctx, user.ID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if settings != nil && settings.IsTwoFactorEnabled {
		ok, err := s.validateTwoFactor(ctx, user, code)
		if err != nil {
			return nil, apperrors.InternalError(err)
		}
		if !ok {
			return nil, errInvalidCredentials()
		}
	}

	return s.issueSession(user)
}

// validateTwoFactor implements the step-up: without a code it consumes a
// pre-existing confirmation; with a code it consumes the TwoFactorToken and
// leaves a confirmation behind for this sign-in.
func (s *AuthServiceImpl) validateTwoFactor(ctx context.Context, user *models.User, code string) (bool, error) {
	if code == "" {
		confirmation, err := s.repo.GetTwoFactorConfirmationByUserID(ctx, user.ID)
		if err != nil {
			if apperrors.Is(err, repositories.ErrConfirmationNotFound) {
				// No pending confirmation: issue a fresh code so the
				// challenge is actually completable.
				if issueErr := s.issueTwoFactorCode(ctx, user); issueErr != nil {
					logger.CtxWithError(ctx, "failed to issue two-factor code", issueErr)
				}
				return false, nil
			}
			return false, err
		}

		err = s.repo.DeleteTwoFactorConfirmation(ctx, confirmation.ID)
		if err != nil {
			if apperrors.Is(err, repositories.ErrConfirmationNotFound) {
				// Consumed by a concurrent sign-in.
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	token, err := s.repo.GetTwoFactorTokenByEmail(ctx, user.Email)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}

	if !auth.CompareTokens(token.Token, code, s.cfg.Tokens.OpaqueHashSecret) || token.Expired() {
		return false, nil
	}

	err = s.repo.WithTx(ctx, func(tx repositories.AuthRepository) error {
		if err := tx.DeleteTwoFactorTokenByToken(ctx, token.Token); err != nil {
			return err
		}
		return tx.CreateTwoFactorConfirmation(ctx, user.ID)
	})
	if err != nil {
		if apperrors.Is(err, repositories.ErrTokenNotFound) {
			// Lost the race for the code.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AuthServiceImpl) issueTwoFactorCode(ctx context.Context, user *models.User) error {
	code, err := generateNumericCode(6)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(config.TwoFactorTokenTTL)
	if err := s.repo.UpsertTwoFactorToken(ctx, user.Email, code, expiresAt); err != nil {
		return err
	}
	return s.mailer.SendTwoFactorCode(user.Email, code)
}

func (s *AuthServiceImpl) issueSession(user *models.User) (*dto.SignInResult, error) {
	refresh, err := s.codec.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	accessToken, err := s.codec.GenerateAccessToken(auth.AccessTokenPayload{
		Sub:       user.ID,
		Email:     user.Email,
		UserID:    user.ID,
		SessionID: refresh.SessionID,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.SignInResult{
		AccessToken:      accessToken,
		UserID:           user.ID,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// SignOut revokes the session carried by the refresh token. Undecodable
// tokens are ignored: the caller's session is gone either way, and repeating
// the call for the same token is harmless.
func (s *AuthServiceImpl) SignOut(ctx context.Context, refreshToken string) error {
	payload, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		logger.CtxWarn(ctx, "sign-out with undecodable refresh token", "error", err.Error())
		return nil
	}

	ttl := config.RefreshTokenTTL + config.RevocationSlack
	if err := s.revocation.Add(ctx, payload.SessionID, ttl); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

// Refresh rotates a refresh token: it verifies and revokes the presented
// session and issues a new pair. Replaying the old token afterwards fails
// the denylist check.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*dto.SignInResult, error) {
	if refreshToken == "" {
		return nil, apperrors.NewUnauthorizedError("Refresh token not found")
	}

	payload, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid refresh token")
	}

	revoked, err := s.revocation.Contains(ctx, payload.SessionID)
	if err != nil {
		// Fail closed: an unreachable denylist cannot confirm the session
		// is still valid.
		return nil, apperrors.InternalError(err)
	}
	if revoked {
		return nil, apperrors.New(apperrors.CodeTokenRevoked, "auth", "Token has been revoked", http.StatusUnauthorized)
	}

	user, err := s.repo.GetUserByID(ctx, payload.Sub)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.NewUnauthorizedError("User not found")
		}
		return nil, apperrors.InternalError(err)
	}

	result, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}

	ttl := config.RefreshTokenTTL + config.RevocationSlack
	if err := s.revocation.Add(ctx, payload.SessionID, ttl); err != nil {
		return nil, apperrors.InternalError(err)
	}

	return result, nil
}

// ForgotPassword mints and emails a reset token when the account exists and
// is verified; the response message never varies.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, emailAddr string) (string, error) {
	user, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return ForgotPasswordMessage, nil
		}
		return "", apperrors.InternalError(err)
	}
	if !user.IsVerified() {
		return ForgotPasswordMessage, nil
	}

	err = s.repo.WithTx(ctx, func(tx repositories.AuthRepository) error {
		token, err := auth.GenerateOpaqueToken(config.OpaqueTokenLength)
		if err != nil {
			return err
		}
		expiresAt := time.Now().Add(config.ResetPasswordTokenTTL)
		if err := tx.UpsertResetPasswordToken(ctx, user.ID, token, expiresAt); err != nil {
			return err
		}
		return s.mailer.SendPasswordReset(user.Email, user.Name, token)
	})
	if err != nil {
		return "", apperrors.InternalError(err)
	}

	return ForgotPasswordMessage, nil
}

// ResetPassword consumes a reset token and replaces the password hash.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, password string) error {
	record, err := s.repo.GetResetPasswordTokenByToken(ctx, token)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTokenNotFound) {
			return errInvalidToken()
		}
		return apperrors.InternalError(err)
	}
	if record.Expired() {
		return errInvalidToken()
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return apperrors.InternalError(err)
	}

	err = s.repo.WithTx(ctx, func(tx repositories.AuthRepository) error {
		if err := tx.UpdateUserPassword(ctx, record.UserID, passwordHash); err != nil {
			return err
		}
		return tx.DeleteResetPasswordTokenByToken(ctx, token)
	})
	if err != nil {
		if apperrors.Is(err, repositories.ErrTokenNotFound) {
			return errInvalidToken()
		}
		return apperrors.InternalError(err)
	}
	return nil
}

// ChangePassword replaces the password for a signed-in user who knows the
// current one.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return apperrors.InternalError(err)
	}

	if user.PasswordHash == nil || !auth.CheckPasswordHash(currentPassword, *user.PasswordHash) {
		return errInvalidCredentials()
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, passwordHash); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

// generateNumericCode returns an n-digit code drawn from crypto/rand.
func generateNumericCode(n int) (string, error) {
	code := make([]byte, n)
	for i := range code {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code[i] = byte('0' + d.Int64())
	}
	return string(code), nil
}
