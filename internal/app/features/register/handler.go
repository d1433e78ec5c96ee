// internal/app/features/register/handler.go
package register

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	uierrors "github.com/dalemusser/vettahub/internal/app/features/errors"
	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/captcha"
	"github.com/dalemusser/vettahub/internal/app/system/normalize"
	"github.com/dalemusser/vettahub/internal/app/system/passwords"
	"github.com/dalemusser/vettahub/internal/app/system/ratelimit"
	"github.com/dalemusser/vettahub/internal/app/system/timeouts"
	"github.com/dalemusser/vettahub/internal/app/system/viewdata"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

// Handler serves the self-registration flow. A new registration never
// establishes a session: the account stays pending until an admin
// activates it and the login credential arrives by email.
type Handler struct {
	Accounts   *accountstore.Store
	Profiles   *profilestore.Store
	Provision  *provision.Store
	Audit      *audit.Store
	SessionMgr *auth.Manager
	Captcha    *captcha.Verifier
	Limiter    *ratelimit.Limiter
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger

	ProvisionExpiry time.Duration

	sanitize *bluemonday.Policy
}

func NewHandler(
	accounts *accountstore.Store,
	profiles *profilestore.Store,
	prov *provision.Store,
	auditStore *audit.Store,
	sessionMgr *auth.Manager,
	verifier *captcha.Verifier,
	limiter *ratelimit.Limiter,
	errLog *uierrors.ErrorLogger,
	provisionExpiry time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Accounts:        accounts,
		Profiles:        profiles,
		Provision:       prov,
		Audit:           auditStore,
		SessionMgr:      sessionMgr,
		Captcha:         verifier,
		Limiter:         limiter,
		ErrLog:          errLog,
		Log:             logger,
		ProvisionExpiry: provisionExpiry,
		sanitize:        bluemonday.StrictPolicy(),
	}
}

type registerFormData struct {
	viewdata.BaseVM
	Error          string
	Name           string
	DOB            string
	Email          string
	CaptchaSiteKey string
	GoogleEnabled  bool
}

// registerForm is the parsed POST body.
type registerForm struct {
	Name  string
	DOB   string
	Email string
}

func (f registerForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name,
			validation.Required.Error("Please enter your name."),
			validation.Length(1, 100).Error("Name must be 100 characters or fewer.")),
		validation.Field(&f.DOB,
			validation.Required.Error("Please enter your date of birth."),
			validation.Date("2006-01-02").Error("Date of birth must be YYYY-MM-DD.")),
		validation.Field(&f.Email,
			validation.Required.Error("Please enter your email address."),
			is.Email.Error("Please enter a valid email address.")),
	)
}

// ServeForm handles GET /register.
func (h *Handler) ServeForm(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "register", registerFormData{
		BaseVM:         viewdata.NewBaseVM(r, "Register", "/"),
		CaptchaSiteKey: h.Captcha.SiteKey,
		GoogleEnabled:  true,
	})
}

// HandleSubmit handles POST /register.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/register")
		return
	}

	form := registerForm{
		Name:  normalize.Name(h.sanitize.Sanitize(r.FormValue("name"))),
		DOB:   strings.TrimSpace(r.FormValue("dob")),
		Email: normalize.Email(r.FormValue("email")),
	}

	ip := ratelimit.ClientIP(r)
	if h.Limiter != nil && !h.Limiter.Allow("register:"+ip) {
		h.renderError(w, r, "Too many registration attempts. Please wait a moment and try again.", form)
		return
	}

	if err := h.Captcha.Verify(r.Context(), r.FormValue("g-recaptcha-response"), ip); err != nil {
		h.Log.Warn("captcha verification failed", zap.Error(err), zap.String("ip", ip))
		h.renderError(w, r, "Captcha verification failed. Please try again.", form)
		return
	}

	if err := form.Validate(); err != nil {
		h.renderError(w, r, firstValidationMessage(err), form)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	// Duplicate check up front so the message can name the method the
	// email is registered under. The unique index still backs this up
	// for concurrent submissions.
	if existing, err := h.Accounts.GetByEmail(ctx, form.Email); err == nil {
		h.renderError(w, r, duplicateMessage(existing.AuthMethod), form)
		return
	} else if !errors.Is(err, accountstore.ErrNotFound) {
		h.ErrLog.LogServerError(w, r, "duplicate check failed", err, "A server error occurred. Please try again.", "/register")
		return
	}

	// The account gets a generated one-time credential. The user never
	// sees it here; it is delivered by the activation email.
	credential, err := passwords.Generate()
	if err != nil {
		h.ErrLog.LogServerError(w, r, "credential generation failed", err, "A server error occurred. Please try again.", "/register")
		return
	}
	hash, err := passwords.Hash(credential)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "credential hash failed", err, "A server error occurred. Please try again.", "/register")
		return
	}

	acct, err := h.Accounts.Create(ctx, models.Account{
		Email:        form.Email,
		AuthMethod:   models.AuthMethodEmail,
		PasswordHash: hash,
	})
	if errors.Is(err, accountstore.ErrDuplicateEmail) {
		// Lost the race to another registration with the same email.
		method := models.AuthMethodEmail
		if existing, lookupErr := h.Accounts.GetByEmail(ctx, form.Email); lookupErr == nil {
			method = existing.AuthMethod
		}
		h.renderError(w, r, duplicateMessage(method), form)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "account create failed", err, "A server error occurred. Please try again.", "/register")
		return
	}

	now := time.Now().UTC()
	_, err = h.Profiles.Create(ctx, models.Profile{
		AccountID:     acct.ID,
		Name:          form.Name,
		DOB:           form.DOB,
		Email:         acct.Email,
		AuthMethod:    acct.AuthMethod,
		IsActive:      false,
		ProvisionedAt: &now,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile create failed", err, "A server error occurred. Please try again.", "/register")
		return
	}

	if _, err := h.Provision.Issue(ctx, acct.ID, provision.KindProvision, credential, h.ProvisionExpiry); err != nil {
		// The account still works; the admin panel will generate a fresh
		// credential at activation time.
		h.Log.Error("provision token issue failed", zap.Error(err), zap.String("account_id", acct.ID.Hex()))
	}

	h.Audit.Record(ctx, audit.Event{
		Type:      audit.EventRegister,
		AccountID: &acct.ID,
		Email:     acct.Email,
		IP:        ip,
	})

	// Registration must not leave anyone signed in, including a visitor
	// who was signed in as a different principal.
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("post-registration sign-out failed", zap.Error(err))
	}

	h.Log.Info("registration complete, pending activation",
		zap.String("account_id", acct.ID.Hex()),
		zap.String("email", acct.Email))

	http.Redirect(w, r, "/register/success", http.StatusSeeOther)
}

// ServeSuccess handles GET /register/success.
func (h *Handler) ServeSuccess(w http.ResponseWriter, r *http.Request) {
	data := struct {
		viewdata.BaseVM
	}{
		BaseVM: viewdata.NewBaseVM(r, "Registration received", "/"),
	}
	templates.Render(w, r, "register_success", data)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, msg string, form registerForm) {
	templates.Render(w, r, "register", registerFormData{
		BaseVM:         viewdata.NewBaseVM(r, "Register", "/"),
		Error:          msg,
		Name:           form.Name,
		DOB:            form.DOB,
		Email:          form.Email,
		CaptchaSiteKey: h.Captcha.SiteKey,
		GoogleEnabled:  true,
	})
}

// duplicateMessage names the auth method the email is already
// registered under, so the user knows which sign-in to use.
func duplicateMessage(method string) string {
	if method == models.AuthMethodEmail {
		return "That email is already registered with an email and password. Try logging in instead."
	}
	return "That email is already registered via " + models.MethodLabel(method) + " sign-in. Use that sign-in method instead."
}

// firstValidationMessage flattens an ozzo validation result into the
// first field message, which is what the single-error form displays.
func firstValidationMessage(err error) string {
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, fieldErr := range errs {
			if fieldErr != nil {
				return fieldErr.Error()
			}
		}
	}
	return err.Error()
}
