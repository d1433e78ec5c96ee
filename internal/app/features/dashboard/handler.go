// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	uierrors "github.com/dalemusser/vettahub/internal/app/features/errors"
	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/passwords"
	"github.com/dalemusser/vettahub/internal/app/system/ratelimit"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/vettahub/internal/app/system/timeouts"
	"github.com/dalemusser/vettahub/internal/app/system/viewdata"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

// Handler serves the member dashboard and the password-change form.
type Handler struct {
	Accounts  *accountstore.Store
	Profiles  *profilestore.Store
	Provision *provision.Store
	Audit     *audit.Store
	Hub       *session.Hub
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(
	accounts *accountstore.Store,
	profiles *profilestore.Store,
	prov *provision.Store,
	auditStore *audit.Store,
	hub *session.Hub,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Accounts:  accounts,
		Profiles:  profiles,
		Provision: prov,
		Audit:     auditStore,
		Hub:       hub,
		ErrLog:    errLog,
		Log:       logger,
	}
}

type dashboardData struct {
	viewdata.BaseVM
	Name        string
	Email       string
	DOB         string
	AuthMethod  string
	Provisioned bool // still on the generated credential
}

type passwordFormData struct {
	viewdata.BaseVM
	Error      string
	IsEmail    bool
	AuthMethod string
}

// ServeDashboard handles GET /dashboard.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	snap, _ := auth.CurrentSession(r)
	sess := snap.Session // guard middleware guarantees non-nil

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	provisioned := false
	if p, err := h.Profiles.GetByAccountID(ctx, sess.AccountID); err == nil {
		provisioned = p.ProvisionedAt != nil
	}

	templates.Render(w, r, "dashboard", dashboardData{
		BaseVM:      viewdata.NewBaseVM(r, "Dashboard", "/"),
		Name:        sess.Name,
		Email:       sess.Email,
		DOB:         sess.DOB,
		AuthMethod:  models.MethodLabel(sess.AuthMethod),
		Provisioned: provisioned,
	})
}

// ServePasswordForm handles GET /dashboard/password.
func (h *Handler) ServePasswordForm(w http.ResponseWriter, r *http.Request) {
	snap, _ := auth.CurrentSession(r)
	h.renderPasswordForm(w, r, "", snap.Session)
}

// HandlePasswordChange handles POST /dashboard/password. The current
// credential is required again even though the user holds a session.
func (h *Handler) HandlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/dashboard")
		return
	}

	snap, _ := auth.CurrentSession(r)
	sess := snap.Session

	if sess.AuthMethod != models.AuthMethodEmail {
		h.renderPasswordForm(w, r, "Your account signs in via "+models.MethodLabel(sess.AuthMethod)+"; there is no password to change here.", sess)
		return
	}

	current := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")

	if newPassword != confirm {
		h.renderPasswordForm(w, r, "New passwords do not match.", sess)
		return
	}
	if !passwords.Validate(newPassword) {
		h.renderPasswordForm(w, r, "Password must be at least 8 characters with an uppercase letter, a lowercase letter, a digit, and a symbol (@$!%*?&).", sess)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	acct, err := h.Accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "account load failed", err, "A server error occurred. Please try again.", "/dashboard")
		return
	}
	if !passwords.Compare(acct.PasswordHash, current) {
		h.renderPasswordForm(w, r, "Your current password is incorrect.", sess)
		return
	}

	hash, err := passwords.Hash(newPassword)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "password hash failed", err, "A server error occurred. Please try again.", "/dashboard")
		return
	}
	if err := h.Accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		h.ErrLog.LogServerError(w, r, "password update failed", err, "A server error occurred. Please try again.", "/dashboard")
		return
	}

	// Choosing a password retires the provisioning credential lifecycle
	// for this account.
	if err := h.Provision.InvalidateForAccount(ctx, acct.ID, provision.KindProvision); err != nil {
		h.Log.Warn("provision invalidate failed", zap.Error(err), zap.String("account_id", acct.ID.Hex()))
	}
	if err := h.Profiles.SetProvisioned(ctx, acct.ID, nil); err != nil {
		h.Log.Warn("clear provisioned marker failed", zap.Error(err), zap.String("account_id", acct.ID.Hex()))
	}

	h.Audit.Record(ctx, audit.Event{
		Type:      audit.EventPasswordChange,
		AccountID: &acct.ID,
		Email:     acct.Email,
		IP:        ratelimit.ClientIP(r),
	})

	// Any open status streams for this account re-resolve now.
	h.Hub.Refresh(ctx, acct.ID)

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) renderPasswordForm(w http.ResponseWriter, r *http.Request, errMsg string, sess *session.Session) {
	templates.Render(w, r, "dashboard_password", passwordFormData{
		BaseVM:     viewdata.NewBaseVM(r, "Change password", "/dashboard"),
		Error:      errMsg,
		IsEmail:    sess.AuthMethod == models.AuthMethodEmail,
		AuthMethod: models.MethodLabel(sess.AuthMethod),
	})
}
