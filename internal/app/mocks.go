package app

import (
	"lumen_backend/internal/logger"
)

// MockEmailProvider logs outbound mail instead of sending it. Used when no
// SMTP host is configured (local development, CI).
type MockEmailProvider struct{}

func (m *MockEmailProvider) SendVerification(to, name, token string) error {
	logger.Info("[mock email] verification", "to", to, "token", token)
	return nil
}

func (m *MockEmailProvider) SendPasswordReset(to, name, token string) error {
	logger.Info("[mock email] password reset", "to", to, "token", token)
	return nil
}

func (m *MockEmailProvider) SendTwoFactorCode(to, code string) error {
	logger.Info("[mock email] two-factor code", "to", to, "code", code)
	return nil
}
