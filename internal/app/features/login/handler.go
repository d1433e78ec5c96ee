// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	uierrors "github.com/dalemusser/vettahub/internal/app/features/errors"
	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/captcha"
	"github.com/dalemusser/vettahub/internal/app/system/mailer"
	"github.com/dalemusser/vettahub/internal/app/system/normalize"
	"github.com/dalemusser/vettahub/internal/app/system/passwords"
	"github.com/dalemusser/vettahub/internal/app/system/ratelimit"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/vettahub/internal/app/system/timeouts"
	"github.com/dalemusser/vettahub/internal/app/system/viewdata"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// Handler serves login, forgot-password, and reset-link flows.
type Handler struct {
	Accounts   *accountstore.Store
	Provision  *provision.Store
	Audit      *audit.Store
	SessionMgr *auth.Manager
	SessionCfg session.Config
	Captcha    *captcha.Verifier
	Limiter    *ratelimit.Limiter
	Mailer     *mailer.Mailer
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger

	BaseURL     string
	ResetExpiry time.Duration

	GoogleEnabled bool
}

func NewHandler(
	accounts *accountstore.Store,
	prov *provision.Store,
	auditStore *audit.Store,
	sessionMgr *auth.Manager,
	sessionCfg session.Config,
	verifier *captcha.Verifier,
	limiter *ratelimit.Limiter,
	mail *mailer.Mailer,
	errLog *uierrors.ErrorLogger,
	baseURL string,
	resetExpiry time.Duration,
	googleEnabled bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Accounts:      accounts,
		Provision:     prov,
		Audit:         auditStore,
		SessionMgr:    sessionMgr,
		SessionCfg:    sessionCfg,
		Captcha:       verifier,
		Limiter:       limiter,
		Mailer:        mail,
		ErrLog:        errLog,
		Log:           logger,
		BaseURL:       baseURL,
		ResetExpiry:   resetExpiry,
		GoogleEnabled: googleEnabled,
	}
}

type loginFormData struct {
	viewdata.BaseVM
	Error          string
	Email          string
	ReturnURL      string
	CaptchaSiteKey string
	GoogleEnabled  bool
}

type forgotFormData struct {
	viewdata.BaseVM
	Error string
	Email string
	Sent  bool
}

type resetFormData struct {
	viewdata.BaseVM
	Error string
	Token string
}

// ServeLogin handles GET /login.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "login", loginFormData{
		BaseVM:         viewdata.NewBaseVM(r, "Login", "/"),
		ReturnURL:      query.Get(r, "return"),
		CaptchaSiteKey: h.Captcha.SiteKey,
		GoogleEnabled:  h.GoogleEnabled,
	})
}

// HandleLoginPost handles POST /login.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	email := normalize.Email(r.FormValue("email"))
	password := r.FormValue("password")
	ret := strings.TrimSpace(r.FormValue("return"))

	if email == "" || password == "" {
		h.renderLoginError(w, r, "Please enter your email and password.", email, ret)
		return
	}

	ip := ratelimit.ClientIP(r)
	if h.Limiter != nil && !h.Limiter.Allow("login:"+ip) {
		h.renderLoginError(w, r, "Too many login attempts. Please wait a moment and try again.", email, ret)
		return
	}

	if err := h.Captcha.Verify(r.Context(), r.FormValue("g-recaptcha-response"), ip); err != nil {
		h.Log.Warn("captcha verification failed", zap.Error(err), zap.String("ip", ip))
		h.renderLoginError(w, r, "Captcha verification failed. Please try again.", email, ret)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, accountstore.ErrNotFound):
		h.Audit.Record(ctx, audit.Event{Type: audit.EventLoginDenied, Email: email, Detail: "no account", IP: ip})
		h.renderLoginError(w, r, "Incorrect email or password.", email, ret)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "account lookup failed", err, "A server error occurred. Please try again.", "/login")
		return
	}

	if acct.AuthMethod != models.AuthMethodEmail || acct.PasswordHash == "" {
		h.renderLoginError(w, r,
			"That account signs in via "+models.MethodLabel(acct.AuthMethod)+". Use that sign-in method instead.",
			email, ret)
		return
	}

	if !passwords.Compare(acct.PasswordHash, password) {
		h.Audit.Record(ctx, audit.Event{Type: audit.EventLoginDenied, AccountID: &acct.ID, Email: email, Detail: "wrong password", IP: ip})
		h.renderLoginError(w, r, "Incorrect email or password.", email, ret)
		return
	}

	ident := session.Identity{AccountID: acct.ID, Email: acct.Email, AuthMethod: acct.AuthMethod}
	if err := h.SessionMgr.SignIn(w, r, ident); err != nil {
		h.ErrLog.LogServerError(w, r, "session save failed", err, "Unable to create session. Please try again.", "/login")
		return
	}

	sess, err := session.Resolve(ctx, h.SessionCfg, &ident)
	if err != nil {
		// The principal is signed in; routing falls back to the pending
		// page, where the status stream re-resolves.
		h.Log.Warn("post-login resolution failed", zap.Error(err), zap.String("account_id", acct.ID.Hex()))
	}

	h.Audit.Record(ctx, audit.Event{Type: audit.EventLogin, AccountID: &acct.ID, Email: acct.Email, IP: ip})

	// Route by authorization state. An inactive account keeps its
	// session and waits on the pending page for activation.
	switch sess.State() {
	case session.StateAdmin:
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	case session.StateActive:
		http.Redirect(w, r, urlutil.SafeReturn(ret, "", "/dashboard"), http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/pending", http.StatusSeeOther)
	}
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, msg, email, ret string) {
	templates.Render(w, r, "login", loginFormData{
		BaseVM:         viewdata.NewBaseVM(r, "Login", "/"),
		Error:          msg,
		Email:          email,
		ReturnURL:      ret,
		CaptchaSiteKey: h.Captcha.SiteKey,
		GoogleEnabled:  h.GoogleEnabled,
	})
}

// ServeForgot handles GET /login/forgot.
func (h *Handler) ServeForgot(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "login_forgot", forgotFormData{
		BaseVM: viewdata.NewBaseVM(r, "Reset your password", "/login"),
		Sent:   query.Get(r, "sent") == "1",
	})
}

// HandleForgotPost handles POST /login/forgot. The response is neutral
// regardless of whether the email exists.
func (h *Handler) HandleForgotPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	email := normalize.Email(r.FormValue("email"))
	if email == "" {
		templates.Render(w, r, "login_forgot", forgotFormData{
			BaseVM: viewdata.NewBaseVM(r, "Reset your password", "/login"),
			Error:  "Please enter your email address.",
		})
		return
	}

	ip := ratelimit.ClientIP(r)
	if h.Limiter != nil && !h.Limiter.Allow("forgot:"+ip) {
		templates.Render(w, r, "login_forgot", forgotFormData{
			BaseVM: viewdata.NewBaseVM(r, "Reset your password", "/login"),
			Error:  "Too many requests. Please wait a moment and try again.",
			Email:  email,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, email)
	if err == nil && acct.AuthMethod == models.AuthMethodEmail {
		token, issueErr := h.Provision.IssueResetLink(ctx, acct.ID, h.ResetExpiry)
		if issueErr != nil {
			h.Log.Error("reset link issue failed", zap.Error(issueErr), zap.String("account_id", acct.ID.Hex()))
		} else {
			msg := mailer.BuildResetEmail(mailer.ResetEmailData{
				SiteName:  viewdata.SiteName(),
				ResetLink: fmt.Sprintf("%s/login/reset?token=%s", h.BaseURL, token),
				ExpiresIn: formatExpiry(h.ResetExpiry),
			})
			msg.To = acct.Email
			h.Mailer.SendBestEffort(ctx, msg)
			h.Audit.Record(ctx, audit.Event{Type: audit.EventPasswordReset, AccountID: &acct.ID, Email: acct.Email, Detail: "reset link sent", IP: ip})
		}
	} else if err != nil && !errors.Is(err, accountstore.ErrNotFound) {
		h.Log.Error("forgot-password lookup failed", zap.Error(err))
	}

	// Same destination whether or not the account exists.
	http.Redirect(w, r, "/login/forgot?sent=1", http.StatusSeeOther)
}

// ServeReset handles GET /login/reset?token=…, rendering the
// new-password form if the link is still valid.
func (h *Handler) ServeReset(w http.ResponseWriter, r *http.Request) {
	token := query.Get(r, "token")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Provision.ResolveResetLink(ctx, token); err != nil {
		h.Log.Warn("invalid reset link", zap.Error(err))
		templates.Render(w, r, "login_reset", resetFormData{
			BaseVM: viewdata.NewBaseVM(r, "Choose a new password", "/login"),
			Error:  "This reset link is invalid or has expired. Please request a new one.",
		})
		return
	}

	templates.Render(w, r, "login_reset", resetFormData{
		BaseVM: viewdata.NewBaseVM(r, "Choose a new password", "/login"),
		Token:  token,
	})
}

// HandleResetPost handles POST /login/reset: consumes the one-time
// token and replaces the account credential.
func (h *Handler) HandleResetPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	token := r.FormValue("token")
	newPassword := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")

	renderErr := func(msg string) {
		templates.Render(w, r, "login_reset", resetFormData{
			BaseVM: viewdata.NewBaseVM(r, "Choose a new password", "/login"),
			Error:  msg,
			Token:  token,
		})
	}

	if newPassword != confirm {
		renderErr("Passwords do not match.")
		return
	}
	if !passwords.Validate(newPassword) {
		renderErr("Password must be at least 8 characters with an uppercase letter, a lowercase letter, a digit, and a symbol (@$!%*?&).")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	t, err := h.Provision.ResolveResetLink(ctx, token)
	if err != nil {
		renderErr("This reset link is invalid or has expired. Please request a new one.")
		return
	}
	if err := h.Provision.Consume(ctx, t.ID); err != nil {
		renderErr("This reset link was already used. Please request a new one.")
		return
	}

	hash, err := passwords.Hash(newPassword)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "password hash failed", err, "A server error occurred. Please try again.", "/login")
		return
	}
	if err := h.Accounts.UpdatePassword(ctx, t.AccountID, hash); err != nil {
		h.ErrLog.LogServerError(w, r, "password update failed", err, "A server error occurred. Please try again.", "/login")
		return
	}

	// The user now owns their credential; retire any outstanding
	// provisioning token too.
	if err := h.Provision.InvalidateForAccount(ctx, t.AccountID, provision.KindProvision); err != nil {
		h.Log.Warn("provision invalidate failed", zap.Error(err), zap.String("account_id", t.AccountID.Hex()))
	}

	h.Audit.Record(ctx, audit.Event{Type: audit.EventPasswordReset, AccountID: &t.AccountID, Detail: "password reset via link", IP: ratelimit.ClientIP(r)})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// formatExpiry renders a duration as readable text for email copy.
func formatExpiry(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
