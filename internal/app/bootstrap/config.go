// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for VettaHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_key, etc.
//   - Environment variables: VETTAHUB_MONGO_URI, VETTAHUB_SESSION_KEY, etc.
//   - Command-line flags: --mongo_uri, --session_key, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "vettahub", Desc: "MongoDB database name"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "csrf_key", Default: "dev-only-csrf-change-me-0123456789AB", Desc: "CSRF token key (32 bytes recommended)"},

	// Authorization
	{Name: "admin_email", Default: "", Desc: "Email of the configured administrator (case-insensitive match, blank disables)"},
	{Name: "session_fetch_policy", Default: "signed_out", Desc: "Profile fetch failure policy: 'signed_out' or 'error'"},

	// reCAPTCHA
	{Name: "recaptcha_site_key", Default: "", Desc: "reCAPTCHA site key (blank disables verification)"},
	{Name: "recaptcha_secret", Default: "", Desc: "reCAPTCHA secret key"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@vettahub.com", Desc: "From email address"},
	{Name: "mail_from_name", Default: "VettaHub", Desc: "From display name"},

	// Base URL for email links (password reset, activation notices)
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Token lifetimes
	{Name: "provision_token_expiry", Default: "168h", Desc: "Generated-credential token expiry (e.g., 168h)"},
	{Name: "reset_token_expiry", Default: "30m", Desc: "Password reset link expiry (e.g., 30m, 1h)"},

	// Rate limiting for credential endpoints
	{Name: "login_rate_limit", Default: 10, Desc: "Max credential attempts per client per window"},
	{Name: "login_rate_window", Default: "1m", Desc: "Rate limit window (e.g., 1m)"},

	// Site display name
	{Name: "site_name", Default: "VettaHub", Desc: "Display name used in page titles and email"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, VETTAHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "VETTAHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
		SessionKey:    appValues.String("session_key"),
		SessionDomain: appValues.String("session_domain"),
		CSRFKey:       appValues.String("csrf_key"),

		AdminEmail:         appValues.String("admin_email"),
		SessionFetchPolicy: appValues.String("session_fetch_policy"),

		RecaptchaSiteKey: appValues.String("recaptcha_site_key"),
		RecaptchaSecret:  appValues.String("recaptcha_secret"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		BaseURL: appValues.String("base_url"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		ProvisionTokenExpiry: appValues.Duration("provision_token_expiry", 168*time.Hour),
		ResetTokenExpiry:     appValues.Duration("reset_token_expiry", 30*time.Minute),

		LoginRateLimit:  appValues.Int("login_rate_limit"),
		LoginRateWindow: appValues.Duration("login_rate_window", time.Minute),

		SiteName: appValues.String("site_name"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// VettaHub validates the MongoDB URI format and the session fetch
// policy to catch configuration errors early, and warns when the admin
// override is unset so a silent misconfiguration does not strand the
// admin panel.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if _, err := session.ParseFetchPolicy(appCfg.SessionFetchPolicy); err != nil {
		return err
	}

	if appCfg.AdminEmail == "" {
		logger.Warn("admin_email is not configured; only profiles flagged is_admin can reach the admin panel")
	}

	if coreCfg.Env == "prod" {
		if appCfg.SessionKey == "" || appCfg.SessionKey == "dev-only-change-me-please-0123456789ABCDEF" {
			return fmt.Errorf("session_key must be set to a strong value in production")
		}
		if appCfg.RecaptchaSecret == "" {
			logger.Warn("recaptcha_secret is not configured; captcha verification is disabled")
		}
	}

	return nil
}
