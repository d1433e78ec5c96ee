// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	adminfeature "github.com/dalemusser/vettahub/internal/app/features/adminpanel"
	authgooglefeature "github.com/dalemusser/vettahub/internal/app/features/authgoogle"
	dashboardfeature "github.com/dalemusser/vettahub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/vettahub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/vettahub/internal/app/features/health"
	homefeature "github.com/dalemusser/vettahub/internal/app/features/home"
	loginfeature "github.com/dalemusser/vettahub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/vettahub/internal/app/features/logout"
	pendingfeature "github.com/dalemusser/vettahub/internal/app/features/pending"
	registerfeature "github.com/dalemusser/vettahub/internal/app/features/register"
	sessionstatusfeature "github.com/dalemusser/vettahub/internal/app/features/sessionstatus"
	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	"github.com/dalemusser/vettahub/internal/app/store/oauthstate"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/captcha"
	"github.com/dalemusser/vettahub/internal/app/system/mailer"
	"github.com/dalemusser/vettahub/internal/app/system/ratelimit"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and Startup have completed. VettaHub builds its stores and shared
// services here, boots the template engine, applies session and CSRF
// middleware, and mounts a feature router per application area.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.VettaHubMongoDatabase

	accounts := accountstore.New(db)
	profiles := profilestore.New(db)
	prov := provision.New(db)
	states := oauthstate.New(db)
	auditStore := audit.New(db, logger)

	// The fetch policy was validated at startup; the zero value is the
	// lenient signed_out policy either way.
	policy, _ := session.ParseFetchPolicy(appCfg.SessionFetchPolicy)
	sessionCfg := session.Config{
		AdminEmail: appCfg.AdminEmail,
		Source:     profiles,
		Policy:     policy,
		Log:        logger,
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewManager(appCfg.SessionKey, appCfg.SessionDomain, secure, sessionCfg, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Shared services for the credential flows.
	verifier := captcha.New(appCfg.RecaptchaSiteKey, appCfg.RecaptchaSecret, logger)
	limiter := ratelimit.New(appCfg.LoginRateLimit, appCfg.LoginRateWindow)
	mail := mailer.New(appCfg.MailSMTPHost, appCfg.MailSMTPPort, appCfg.MailSMTPUser, appCfg.MailSMTPPass, appCfg.MailFrom, appCfg.MailFromName, logger)
	hub := session.NewHub()

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	googleEnabled := appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret != ""

	r := chi.NewRouter()

	// CSRF protection for every non-safe method. Templates embed the
	// token via the shared view model.
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey), csrf.Secure(secure), csrf.Path("/")))

	// Global auth middleware: resolves the session for the signed-in
	// principal and stashes the snapshot in the request context.
	r.Use(sessionMgr.LoadSession)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.VettaHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Public pages
	homeHandler := homefeature.NewHandler(logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Registration
	registerHandler := registerfeature.NewHandler(accounts, profiles, prov, auditStore, sessionMgr, verifier, limiter, errLog, appCfg.ProvisionTokenExpiry, logger)
	r.Mount("/register", registerfeature.Routes(registerHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(accounts, prov, auditStore, sessionMgr, sessionCfg, verifier, limiter, mail, errLog, appCfg.BaseURL, appCfg.ResetTokenExpiry, googleEnabled, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditStore, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	if googleEnabled {
		googleHandler := authgooglefeature.NewHandler(accounts, profiles, auditStore, states, sessionMgr, sessionCfg, appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
	}

	// Holding page for signed-in but not-yet-activated principals
	pendingHandler := pendingfeature.NewHandler(logger)
	r.Mount("/pending", pendingfeature.Routes(pendingHandler))

	// Live session state stream (SSE)
	statusHandler := sessionstatusfeature.NewHandler(sessionMgr, sessionCfg, hub, logger)
	r.Mount("/session", sessionstatusfeature.Routes(statusHandler))

	// Member dashboard (activated principals and the admin)
	dashboardHandler := dashboardfeature.NewHandler(accounts, profiles, prov, auditStore, hub, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	// Admin panel (configured administrator only)
	adminHandler := adminfeature.NewHandler(accounts, profiles, prov, auditStore, mail, hub, errLog, appCfg.BaseURL, appCfg.ProvisionTokenExpiry, logger)
	r.Mount("/admin", adminfeature.Routes(adminHandler, sessionMgr))

	// Custom 404 page
	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)

	return r, nil
}
