package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// TemplateData carries the substitution values for a template body.
type TemplateData map[string]interface{}

const verificationTemplate = `
<h2>Verify your email</h2>
<p>Hi {{.Name}},</p>
<p>Confirm your email address to activate your account. The link is valid for 7 days.</p>
<p><a href="{{.VerifyURL}}">Verify email</a></p>
<p>If you did not create an account, you can ignore this message.</p>
`

const passwordResetTemplate = `
<h2>Reset your password</h2>
<p>Hi {{.Name}},</p>
<p>A password reset was requested for your account. The link is valid for 10 minutes.</p>
<p><a href="{{.ResetURL}}">Reset password</a></p>
<p>If you did not request this, you can ignore this message.</p>
`

const twoFactorTemplate = `
<h2>Your sign-in code</h2>
<p>Enter this code to finish signing in. It expires in 5 minutes.</p>
<p style="font-size:24px;letter-spacing:4px;"><strong>{{.Code}}</strong></p>
`

var templates = map[string]*template.Template{
	"verification":   template.Must(template.New("verification").Parse(verificationTemplate)),
	"password_reset": template.Must(template.New("password_reset").Parse(passwordResetTemplate)),
	"two_factor":     template.Must(template.New("two_factor").Parse(twoFactorTemplate)),
}

// Render produces the HTML body for a named template.
func Render(name string, data TemplateData) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
