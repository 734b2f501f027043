package dto

import "time"

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	// Optional 2FA code for the step-up path.
	Code string `json:"code"`
}

// SignInResult is the service-level outcome. Handlers put RefreshToken into
// the HTTP-only cookie and return only AccessToken and UserID in the body.
type SignInResult struct {
	AccessToken      string
	UserID           string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SignInResponse is the response body shape: the refresh token never
// appears here.
type SignInResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
