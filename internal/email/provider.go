package email

// Provider sends the transactional emails the auth flows depend on.
type Provider interface {
	// SendVerification sends the email-verification link.
	SendVerification(to, name, token string) error

	// SendPasswordReset sends the password-reset link.
	SendPasswordReset(to, name, token string) error

	// SendTwoFactorCode sends the short-lived sign-in code.
	SendTwoFactorCode(to, code string) error
}
