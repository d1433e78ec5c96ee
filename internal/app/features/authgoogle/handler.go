// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	accountstore "github.com/dalemusser/vettahub/internal/app/store/accounts"
	"github.com/dalemusser/vettahub/internal/app/store/audit"
	"github.com/dalemusser/vettahub/internal/app/store/oauthstate"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/normalize"
	"github.com/dalemusser/vettahub/internal/app/system/ratelimit"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/vettahub/internal/app/system/timeouts"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// Handler handles Google OAuth sign-in and sign-up.
//
// Both modes share the consent round-trip; the one-time state record
// remembers which mode started the flow. Sign-up creates the principal
// and a pending profile; sign-in requires an existing one. Either way
// the session routing afterwards follows the authorization state, so a
// not-yet-activated account lands on the pending page.
type Handler struct {
	Accounts   *accountstore.Store
	Profiles   *profilestore.Store
	Audit      *audit.Store
	StateStore *oauthstate.Store
	SessionMgr *auth.Manager
	SessionCfg session.Config
	Log        *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://vettahub.com/auth/google/callback"
}

func NewHandler(
	accounts *accountstore.Store,
	profiles *profilestore.Store,
	auditStore *audit.Store,
	stateStore *oauthstate.Store,
	sessionMgr *auth.Manager,
	sessionCfg session.Config,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Accounts:     accounts,
		Profiles:     profiles,
		Audit:        auditStore,
		StateStore:   stateStore,
		SessionMgr:   sessionMgr,
		SessionCfg:   sessionCfg,
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// ServeStart handles GET /auth/google. mode=register starts a sign-up
// flow; anything else is a sign-in.
func (h *Handler) ServeStart(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, "/login?error=google_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	returnURL := query.Get(r, "return")
	mode := "login"
	if query.Get(r, "mode") == "register" {
		mode = "register"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(10 * time.Minute)
	if err := h.StateStore.Save(ctx, state, returnURL, mode, expiresAt); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)

	h.Log.Debug("initiating Google OAuth flow",
		zap.String("mode", mode),
		zap.String("return_url", returnURL))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// ServeCallback handles GET /auth/google/callback.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/login?error=google_denied", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, mode, valid, err := h.StateStore.Validate(ctxTimeout, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		http.Redirect(w, r, "/login?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		http.Redirect(w, r, "/login?error=user_info", http.StatusSeeOther)
		return
	}

	acct, err := h.findOrCreateAccount(ctx, googleUser, mode == "register")
	switch {
	case errors.Is(err, errNoAccount):
		h.Audit.Record(ctx, audit.Event{Type: audit.EventLoginDenied, Email: googleUser.Email, Detail: "google: no account", IP: ratelimit.ClientIP(r)})
		http.Redirect(w, r, "/login?error=no_account", http.StatusSeeOther)
		return
	case err != nil:
		h.Log.Error("google account lookup failed", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	ident := session.Identity{AccountID: acct.ID, Email: acct.Email, AuthMethod: acct.AuthMethod}
	if err := h.SessionMgr.SignIn(w, r, ident); err != nil {
		h.Log.Error("session save failed", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	h.Audit.Record(ctx, audit.Event{Type: audit.EventLogin, AccountID: &acct.ID, Email: acct.Email, Detail: "google", IP: ratelimit.ClientIP(r)})

	sess, err := session.Resolve(ctx, h.SessionCfg, &ident)
	if err != nil {
		h.Log.Warn("post-oauth resolution failed", zap.Error(err), zap.String("account_id", acct.ID.Hex()))
	}
	switch sess.State() {
	case session.StateAdmin:
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	case session.StateActive:
		http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/dashboard"), http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/pending", http.StatusSeeOther)
	}
}

var errNoAccount = errors.New("no account for google principal")

// findOrCreateAccount resolves the Google principal to an account.
// Sign-up (register=true) creates the principal and a pending profile
// on first contact; sign-in tolerates a missing profile (the lenient
// merge handles it) but requires the principal to exist.
func (h *Handler) findOrCreateAccount(ctx context.Context, gu *googleUserInfo, register bool) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	acct, err := h.Accounts.GetBySubject(ctx, "google", gu.ID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, accountstore.ErrNotFound) {
		return nil, err
	}

	// Fall back to the email: a principal registered via Google before
	// the subject claim was stored.
	acct, err = h.Accounts.GetByEmail(ctx, gu.Email)
	if err == nil {
		if acct.AuthMethod != "google" {
			return nil, fmt.Errorf("email registered via %s, not google", acct.AuthMethod)
		}
		return acct, nil
	}
	if !errors.Is(err, accountstore.ErrNotFound) {
		return nil, err
	}
	if !register {
		return nil, errNoAccount
	}

	created, err := h.Accounts.Create(ctx, models.Account{
		Email:      normalize.Email(gu.Email),
		AuthMethod: "google",
		Subject:    gu.ID,
	})
	if err != nil {
		return nil, err
	}

	// Federated profiles start pending with an empty dob; the provider
	// supplies name and photo.
	_, err = h.Profiles.Create(ctx, models.Profile{
		AccountID:  created.ID,
		Name:       gu.Name,
		NameCI:     text.Fold(gu.Name),
		Email:      created.Email,
		AuthMethod: "google",
		IsActive:   false,
		PhotoURL:   gu.Picture,
	})
	if err != nil {
		h.Log.Error("profile create failed for google sign-up",
			zap.Error(err),
			zap.String("account_id", created.ID.Hex()))
	}

	h.Audit.Record(ctx, audit.Event{Type: audit.EventRegister, AccountID: &created.ID, Email: created.Email, Detail: "google"})
	return &created, nil
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// generateState produces a cryptographically random state parameter.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
