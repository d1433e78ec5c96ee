// Package auth owns the cookie session and the middleware that turns
// it into an authorization snapshot on every request.
//
// The cookie stores only the principal (account id, email, auth
// method). Everything derived from it, activation, admin standing,
// profile attributes, is resolved per request by the session package
// so that an admin toggling activation takes effect on the user's next
// request without touching their cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/dalemusser/vettahub/internal/app/system/gates"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SessionName = "vettahub-session"

	accountIDKey  = "account_id"
	emailKey      = "email"
	authMethodKey = "auth_method"
)

type ctxKey string

const snapshotCtxKey ctxKey = "sessionSnapshot"

// snapshotEntry is what LoadSession places in the request context.
type snapshotEntry struct {
	snap session.Snapshot
	err  error // non-nil only under PolicyError when the fetch failed
}

// Manager binds the cookie store to the session resolver config.
type Manager struct {
	store *sessions.CookieStore
	cfg   session.Config
	log   *zap.Logger
}

// NewManager builds the cookie store and wires it to the resolver
// inputs. sessionKey must be at least 32 random characters; secure
// controls the cookie Secure flag and SameSite mode.
func NewManager(sessionKey, domain string, secure bool, cfg session.Config, logger *zap.Logger) (*Manager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if cfg.Source == nil {
		return nil, errors.New("auth: session config needs a profile source")
	}
	if cfg.Log == nil {
		cfg.Log = logger
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &Manager{store: store, cfg: cfg, log: logger}, nil
}

// SignIn writes the principal into the cookie session.
func (m *Manager) SignIn(w http.ResponseWriter, r *http.Request, ident session.Identity) error {
	sess, _ := m.store.Get(r, SessionName)
	sess.Values[accountIDKey] = ident.AccountID.Hex()
	sess.Values[emailKey] = ident.Email
	sess.Values[authMethodKey] = ident.AuthMethod
	return sess.Save(r, w)
}

// SignOut clears the cookie session.
func (m *Manager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, SessionName)
	sess.Values = make(map[interface{}]interface{})
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Identity reads the principal out of the cookie, or nil when the
// visitor is signed out or the cookie is malformed.
func (m *Manager) Identity(r *http.Request) *session.Identity {
	sess, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil
	}
	hex := getString(sess, accountIDKey)
	if hex == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &session.Identity{
		AccountID:  id,
		Email:      getString(sess, emailKey),
		AuthMethod: getString(sess, authMethodKey),
	}
}

// LoadSession resolves the cookie principal into a snapshot and
// injects it into the request context. Per-request resolution is
// synchronous, so the snapshot is never loading here; the loading
// state exists on the streaming side.
//
// A profile-fetch failure follows the configured fetch policy:
// signed_out publishes a nil session, error records the failure for
// the guards to surface.
func (m *Manager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := snapshotEntry{snap: session.Snapshot{}}

		ident := m.Identity(r)
		sess, err := session.Resolve(r.Context(), m.cfg, ident)
		switch {
		case err == nil:
			entry.snap.Session = sess
		case m.cfg.Policy == session.PolicyError:
			m.log.Error("session resolution failed", zap.Error(err))
			entry.err = err
		default:
			m.log.Warn("session resolution failed, treating as signed out", zap.Error(err))
		}

		ctx := context.WithValue(r.Context(), snapshotCtxKey, entry)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentSession returns the snapshot placed by LoadSession. ok is
// false when the middleware did not run.
func CurrentSession(r *http.Request) (session.Snapshot, bool) {
	e, ok := r.Context().Value(snapshotCtxKey).(snapshotEntry)
	return e.snap, ok
}

// ResolveError reports whether the request's session resolution failed
// under the error policy.
func ResolveError(r *http.Request) error {
	e, _ := r.Context().Value(snapshotCtxKey).(snapshotEntry)
	return e.err
}

// RequireActive admits an activated user or an administrator.
// Everyone else is redirected to the login page.
func (m *Manager) RequireActive(next http.Handler) http.Handler {
	return m.guard(next, gates.Authenticated)
}

// RequireAdmin admits only an administrator. A signed-in non-admin is
// redirected to login, same as a signed-out visitor.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return m.guard(next, gates.Admin)
}

func (m *Manager) guard(next http.Handler, decide func(*session.Session, bool) gates.Decision) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ResolveError(r); err != nil {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		snap, ok := CurrentSession(r)
		if !ok {
			// LoadSession not mounted; treat as signed out.
			redirectToLogin(w, r)
			return
		}

		switch decide(snap.Session, snap.Loading) {
		case gates.Permit:
			next.ServeHTTP(w, r)
		case gates.Wait:
			// Synchronous resolution never leaves a request loading;
			// if it somehow does, fail closed.
			redirectToLogin(w, r)
		default:
			redirectToLogin(w, r)
		}
	})
}

// redirectToLogin sends the visitor to /login, preserving the
// requested URI as a return param.
//   - HTMX: HX-Redirect so the whole page navigates.
//   - HTML: 303 redirect.
//   - API:  plain 401.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(currentURI(r))

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login?return="+ret)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// WithSnapshot returns a request whose context carries the given
// snapshot, as if LoadSession had produced it. Tests use this to
// exercise guarded handlers without a cookie round-trip.
func WithSnapshot(r *http.Request, snap session.Snapshot) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), snapshotCtxKey, snapshotEntry{snap: snap}))
}

// helpers

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func currentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
