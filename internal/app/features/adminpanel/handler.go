// internal/app/features/adminpanel/handler.go
package adminpanel

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	uierrors "github.com/dalemusser/vettahub/internal/app/features/errors"
	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/store/provision"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/mailer"
	"github.com/dalemusser/vettahub/internal/app/system/passwords"
	"github.com/dalemusser/vettahub/internal/app/system/ratelimit"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/vettahub/internal/app/system/timeouts"
	"github.com/dalemusser/vettahub/internal/app/system/viewdata"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
)

// Handler serves the admin panel: the profile roster and the
// activation toggle that drives the whole provisioning lifecycle.
type Handler struct {
	Accounts  *accountstore.Store
	Profiles  *profilestore.Store
	Provision *provision.Store
	Audit     *audit.Store
	Mailer    *mailer.Mailer
	Hub       *session.Hub
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger

	BaseURL         string
	ProvisionExpiry time.Duration
}

func NewHandler(
	accounts *accountstore.Store,
	profiles *profilestore.Store,
	prov *provision.Store,
	auditStore *audit.Store,
	mail *mailer.Mailer,
	hub *session.Hub,
	errLog *uierrors.ErrorLogger,
	baseURL string,
	provisionExpiry time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Accounts:        accounts,
		Profiles:        profiles,
		Provision:       prov,
		Audit:           auditStore,
		Mailer:          mail,
		Hub:             hub,
		ErrLog:          errLog,
		Log:             logger,
		BaseURL:         baseURL,
		ProvisionExpiry: provisionExpiry,
	}
}

type profileRow struct {
	AccountID   string
	Name        string
	Email       string
	DOB         string
	AuthMethod  string
	IsActive    bool
	Provisioned bool
	CreatedAt   string
}

type panelData struct {
	viewdata.BaseVM
	Profiles []profileRow
}

// ServePanel handles GET /admin.
func (h *Handler) ServePanel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	profiles, err := h.Profiles.List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile list failed", err, "A server error occurred.", "/")
		return
	}

	rows := make([]profileRow, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, profileRow{
			AccountID:   p.AccountID.Hex(),
			Name:        p.Name,
			Email:       p.Email,
			DOB:         p.DOB,
			AuthMethod:  models.MethodLabel(p.AuthMethod),
			IsActive:    p.IsActive,
			Provisioned: p.ProvisionedAt != nil,
			CreatedAt:   p.CreatedAt.Format("2006-01-02"),
		})
	}

	templates.Render(w, r, "adminpanel", panelData{
		BaseVM:   viewdata.NewBaseVM(r, "Admin", "/"),
		Profiles: rows,
	})
}

type auditRow struct {
	Type   string
	Email  string
	Detail string
	IP     string
	When   string
}

type accountData struct {
	viewdata.BaseVM
	Profile profileRow
	Events  []auditRow
}

// ServeAccount handles GET /admin/account/{accountID}: one profile with
// its recent audit trail.
func (h *Handler) ServeAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "accountID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad account id", err, "Invalid account.", "/admin")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, profilestore.ErrNotFound) {
			h.ErrLog.LogBadRequest(w, r, "unknown account", err, "Account not found.", "/admin")
			return
		}
		h.ErrLog.LogServerError(w, r, "profile load failed", err, "A server error occurred.", "/admin")
		return
	}

	events, err := h.Audit.ListForAccount(ctx, accountID, 50)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "audit list failed", err, "A server error occurred.", "/admin")
		return
	}

	rows := make([]auditRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, auditRow{
			Type:   e.Type,
			Email:  e.Email,
			Detail: e.Detail,
			IP:     e.IP,
			When:   e.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	templates.Render(w, r, "adminaccount", accountData{
		BaseVM: viewdata.NewBaseVM(r, p.Name, "/admin"),
		Profile: profileRow{
			AccountID:   p.AccountID.Hex(),
			Name:        p.Name,
			Email:       p.Email,
			DOB:         p.DOB,
			AuthMethod:  models.MethodLabel(p.AuthMethod),
			IsActive:    p.IsActive,
			Provisioned: p.ProvisionedAt != nil,
			CreatedAt:   p.CreatedAt.Format("2006-01-02"),
		},
		Events: rows,
	})
}

// HandleActivate handles POST /admin/activate/{accountID}.
//
// Activation flips is_active and makes sure exactly one provisioning
// credential is live: if none is outstanding, a fresh one is generated
// and set as the account credential. The activation email carries the
// credential only when it was generated here; a reactivation that
// reuses an outstanding credential sends the notice without it. Email
// failure never fails the activation.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	accountID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "accountID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad account id", err, "Invalid account.", "/admin")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	profile, err := h.Profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile load failed", err, "A server error occurred.", "/admin")
		return
	}

	if err := h.Profiles.SetActive(ctx, accountID, true); err != nil {
		h.ErrLog.LogServerError(w, r, "activate failed", err, "A server error occurred.", "/admin")
		return
	}

	credential := ""
	if profile.AuthMethod == models.AuthMethodEmail {
		_, err := h.Provision.Outstanding(ctx, accountID, provision.KindProvision)
		switch {
		case errors.Is(err, provision.ErrNotFound):
			credential, err = h.issueCredential(ctx, accountID)
			if err != nil {
				h.ErrLog.LogServerError(w, r, "credential issue failed", err, "A server error occurred.", "/admin")
				return
			}
			now := time.Now().UTC()
			if err := h.Profiles.SetProvisioned(ctx, accountID, &now); err != nil {
				h.Log.Warn("set provisioned marker failed", zap.Error(err), zap.String("account_id", accountID.Hex()))
			}
		case err != nil:
			h.ErrLog.LogServerError(w, r, "outstanding token check failed", err, "A server error occurred.", "/admin")
			return
		default:
			// An unconsumed credential from registration or a previous
			// activation is still valid; don't mint a second one.
		}
	}

	actor := actorID(r)
	h.Audit.Record(ctx, audit.Event{
		Type:      audit.EventActivate,
		AccountID: &accountID,
		ActorID:   actor,
		Email:     profile.Email,
		IP:        ratelimit.ClientIP(r),
	})

	// Fire and forget: the user's activation must not hinge on SMTP.
	msg := mailer.BuildActivationEmail(mailer.ActivationEmailData{
		SiteName:   viewdata.SiteName(),
		Name:       profile.Name,
		Credential: credential,
		LoginURL:   h.BaseURL + "/login",
	})
	msg.To = profile.Email
	h.Mailer.SendBestEffort(ctx, msg)

	// Live status streams for this account advance to the dashboard.
	h.Hub.Refresh(ctx, accountID)

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HandleDeactivate handles POST /admin/deactivate/{accountID}.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	accountID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "accountID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad account id", err, "Invalid account.", "/admin")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	profile, err := h.Profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile load failed", err, "A server error occurred.", "/admin")
		return
	}

	if err := h.Profiles.SetActive(ctx, accountID, false); err != nil {
		h.ErrLog.LogServerError(w, r, "deactivate failed", err, "A server error occurred.", "/admin")
		return
	}

	actor := actorID(r)
	h.Audit.Record(ctx, audit.Event{
		Type:      audit.EventDeactivate,
		AccountID: &accountID,
		ActorID:   actor,
		Email:     profile.Email,
		IP:        ratelimit.ClientIP(r),
	})

	msg := mailer.BuildDeactivationEmail(mailer.DeactivationEmailData{
		SiteName: viewdata.SiteName(),
		Name:     profile.Name,
	})
	msg.To = profile.Email
	h.Mailer.SendBestEffort(ctx, msg)

	h.Hub.Refresh(ctx, accountID)

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// issueCredential generates a fresh 8-char credential, sets it as the
// account password, and records the provisioning token.
func (h *Handler) issueCredential(ctx context.Context, accountID primitive.ObjectID) (string, error) {
	credential, err := passwords.Generate()
	if err != nil {
		return "", err
	}
	hash, err := passwords.Hash(credential)
	if err != nil {
		return "", err
	}
	if err := h.Accounts.UpdatePassword(ctx, accountID, hash); err != nil {
		return "", err
	}
	if _, err := h.Provision.Issue(ctx, accountID, provision.KindProvision, credential, h.ProvisionExpiry); err != nil {
		return "", err
	}
	return credential, nil
}

func actorID(r *http.Request) *primitive.ObjectID {
	if snap, ok := auth.CurrentSession(r); ok && snap.Session != nil {
		id := snap.Session.AccountID
		return &id
	}
	return nil
}
