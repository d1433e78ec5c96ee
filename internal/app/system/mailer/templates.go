// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// ActivationEmailData holds data for the account-activation notice.
type ActivationEmailData struct {
	SiteName   string
	Name       string
	Credential string // one-time login credential; blank if none was issued
	LoginURL   string
}

// BuildActivationEmail creates the notice sent when an admin activates
// an account, with both HTML and text bodies.
func BuildActivationEmail(data ActivationEmailData) Email {
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("Your %s account has been activated", data.SiteName),
		TextBody: buildActivationText(data),
		HTMLBody: buildActivationHTML(data),
	}
}

func buildActivationText(data ActivationEmailData) string {
	var buf bytes.Buffer
	name := data.Name
	if name == "" {
		name = "there"
	}
	buf.WriteString(fmt.Sprintf("Hi %s,\n\n", name))
	buf.WriteString(fmt.Sprintf("Your %s account has been activated.\n\n", data.SiteName))
	if data.Credential != "" {
		buf.WriteString(fmt.Sprintf("Your one-time login credential is: %s\n", data.Credential))
		buf.WriteString("You will be asked to choose your own password after signing in.\n\n")
	}
	buf.WriteString("Sign in here:\n")
	buf.WriteString(data.LoginURL + "\n")
	return buf.String()
}

func buildActivationHTML(data ActivationEmailData) string {
	tmpl := template.Must(template.New("activation").Parse(activationHTMLTemplate))
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

// DeactivationEmailData holds data for the account-deactivation notice.
type DeactivationEmailData struct {
	SiteName string
	Name     string
}

// BuildDeactivationEmail creates the notice sent when an admin
// deactivates an account.
func BuildDeactivationEmail(data DeactivationEmailData) Email {
	var buf bytes.Buffer
	name := data.Name
	if name == "" {
		name = "there"
	}
	buf.WriteString(fmt.Sprintf("Hi %s,\n\n", name))
	buf.WriteString(fmt.Sprintf("Your %s account has been deactivated.\n", data.SiteName))
	buf.WriteString("If you believe this is a mistake, contact the administrator.\n")

	return Email{
		Subject:  fmt.Sprintf("Your %s account has been deactivated", data.SiteName),
		TextBody: buf.String(),
	}
}

// ResetEmailData holds data for the password-reset email.
type ResetEmailData struct {
	SiteName  string
	ResetLink string
	ExpiresIn string // e.g., "30 minutes"
}

// BuildResetEmail creates the password-reset email with both HTML and
// text bodies.
func BuildResetEmail(data ResetEmailData) Email {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("A password reset was requested for your %s account.\n\n", data.SiteName))
	buf.WriteString("Click this link to choose a new password:\n")
	buf.WriteString(data.ResetLink + "\n\n")
	buf.WriteString(fmt.Sprintf("This link expires in %s.\n\n", data.ExpiresIn))
	buf.WriteString("If you did not request a reset, you can safely ignore this email.\n")

	tmpl := template.Must(template.New("reset").Parse(resetHTMLTemplate))
	var html bytes.Buffer
	_ = tmpl.Execute(&html, data)

	return Email{
		Subject:  fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: buf.String(),
		HTMLBody: html.String(),
	}
}

const activationHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Account Activated</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Your account has been activated.
              </p>
              {{if .Credential}}
              <p style="margin: 0 0 12px; font-size: 14px; color: #6b7280;">
                Your one-time login credential is:
              </p>
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 24px; text-align: center; margin-bottom: 24px;">
                <span style="font-size: 24px; font-weight: 700; letter-spacing: 4px; color: #1f2937; font-family: 'Courier New', monospace;">{{.Credential}}</span>
              </div>
              <p style="margin: 0 0 24px; font-size: 14px; color: #6b7280;">
                You will be asked to choose your own password after signing in.
              </p>
              {{end}}
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.LoginURL}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      Sign In
                    </a>
                  </td>
                </tr>
              </table>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

const resetHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Password Reset</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                A password reset was requested for your account.
              </p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.ResetLink}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      Choose a New Password
                    </a>
                  </td>
                </tr>
              </table>
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This link expires in {{.ExpiresIn}}.
              </p>
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                If you did not request a reset, you can safely ignore this email.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
