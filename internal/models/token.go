package models

import "time"

// VerificationToken is a one-shot email-verification token. The repository
// upserts by user, so at most one live token exists per user.
type VerificationToken struct {
	BaseModel
	UserID    string    `gorm:"uniqueIndex;not null" json:"userId"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
}

func (t *VerificationToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// ResetPasswordToken mirrors VerificationToken, scoped to password reset.
type ResetPasswordToken struct {
	BaseModel
	UserID    string    `gorm:"uniqueIndex;not null" json:"userId"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
}

func (t *ResetPasswordToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// TwoFactorToken is a short-lived sign-in code keyed by email.
type TwoFactorToken struct {
	BaseModel
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Token     string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
}

func (t *TwoFactorToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// TwoFactorConfirmation marks that a user passed the 2FA challenge for the
// current sign-in attempt. Consumed (deleted) by the sign-in flow that finds
// it without a code.
type TwoFactorConfirmation struct {
	BaseModel
	UserID string `gorm:"uniqueIndex;not null" json:"userId"`
}
