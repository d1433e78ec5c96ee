// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS,
// logging, CORS). AppConfig is everything specific to VettaHub:
// database connection strings, session and CSRF keys, the configured
// administrator, captcha and SMTP credentials, OAuth client settings,
// and token lifetimes.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionDomain string // Cookie domain (blank means current host)
	CSRFKey       string // Secret key for CSRF tokens (32 bytes recommended)

	// The configured administrator. A session whose email matches this
	// value (case-insensitively) is the administrator regardless of the
	// stored profile. Blank disables the override.
	AdminEmail string

	// SessionFetchPolicy decides what a failed profile fetch does to a
	// live session: "signed_out" or "error".
	SessionFetchPolicy string

	// reCAPTCHA configuration. Blank keys disable verification (dev).
	RecaptchaSiteKey string
	RecaptchaSecret  string

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty for Mailpit)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address (e.g., noreply@vettahub.com)
	MailFromName string // From display name (e.g., VettaHub)

	// Base URL for links placed in email (reset links, sign-in links).
	BaseURL string // e.g., "https://vettahub.com" or "http://localhost:3000"

	// Google OAuth configuration. Blank disables federated sign-in.
	GoogleClientID     string
	GoogleClientSecret string

	// Token lifetimes
	ProvisionTokenExpiry time.Duration // generated-credential provisioning tokens
	ResetTokenExpiry     time.Duration // password reset links

	// Rate limiting for credential endpoints (login, register, forgot)
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Display name used in page titles and email
	SiteName string
}
