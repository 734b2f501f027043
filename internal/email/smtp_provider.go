package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"lumen_backend/internal/config"
)

// SMTPProvider sends mail through a plain SMTP relay via gomail.
type SMTPProvider struct {
	cfg *config.Config
}

func NewSMTPProvider(cfg *config.Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.cfg.Email.FromEmail, p.cfg.Email.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(
		p.cfg.Email.SMTPHost,
		p.cfg.Email.SMTPPort,
		p.cfg.Email.SMTPUsername,
		p.cfg.Email.SMTPPassword,
	)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func (p *SMTPProvider) SendVerification(to, name, token string) error {
	body, err := Render("verification", TemplateData{
		"Name":      name,
		"VerifyURL": fmt.Sprintf("%s/verify-email?token=%s", p.cfg.App.Origin, token),
	})
	if err != nil {
		return err
	}
	return p.send(to, "Verify your email", body)
}

func (p *SMTPProvider) SendPasswordReset(to, name, token string) error {
	body, err := Render("password_reset", TemplateData{
		"Name":     name,
		"ResetURL": fmt.Sprintf("%s/reset-password?token=%s", p.cfg.App.Origin, token),
	})
	if err != nil {
		return err
	}
	return p.send(to, "Reset your password", body)
}

func (p *SMTPProvider) SendTwoFactorCode(to, code string) error {
	body, err := Render("two_factor", TemplateData{"Code": code})
	if err != nil {
		return err
	}
	return p.send(to, "Your sign-in code", body)
}
