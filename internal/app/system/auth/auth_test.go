package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type mapSource map[primitive.ObjectID]*models.Profile

func (m mapSource) GetByAccountID(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, profilestore.ErrNotFound
}

const testKey = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, src session.ProfileSource, adminEmail string) *Manager {
	t.Helper()
	m, err := NewManager(testKey, "", false, session.Config{
		AdminEmail: adminEmail,
		Source:     src,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSignInRoundTrip(t *testing.T) {
	id := primitive.NewObjectID()
	src := mapSource{id: {IsActive: true, Name: "Ada"}}
	m := newTestManager(t, src, "")

	// Sign in and capture the cookie.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	if err := m.SignIn(rec, req, session.Identity{AccountID: id, Email: "ada@example.com", AuthMethod: "email"}); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("SignIn set no cookie")
	}

	// Replay the cookie through LoadSession.
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	var got session.Snapshot
	h := m.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentSession(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.Session == nil {
		t.Fatal("no session resolved from cookie")
	}
	if got.Session.Email != "ada@example.com" || !got.Session.IsActive || got.Session.Name != "Ada" {
		t.Errorf("unexpected session: %+v", got.Session)
	}
	if got.Loading {
		t.Error("per-request snapshot should never be loading")
	}
}

func TestSignOutClearsCookie(t *testing.T) {
	m := newTestManager(t, mapSource{}, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	if err := m.SignOut(rec, req); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionName && c.MaxAge >= 0 {
			t.Errorf("session cookie not expired: MaxAge=%d", c.MaxAge)
		}
	}
}

func TestRequireActive(t *testing.T) {
	tests := []struct {
		name       string
		sess       *session.Session
		wantStatus int
	}{
		{"signed out redirects to login", nil, http.StatusSeeOther},
		{"pending redirects to login", &session.Session{}, http.StatusSeeOther},
		{"active passes", &session.Session{IsActive: true}, http.StatusOK},
		{"admin passes without activation", &session.Session{IsAdmin: true}, http.StatusOK},
	}

	m := newTestManager(t, mapSource{}, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.Header.Set("Accept", "text/html")
			req = WithSnapshot(req, session.Snapshot{Session: tt.sess})

			rec := httptest.NewRecorder()
			m.RequireActive(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusSeeOther {
				loc := rec.Header().Get("Location")
				if !strings.HasPrefix(loc, "/login") {
					t.Errorf("redirect target: got %q, want /login", loc)
				}
			}
		})
	}
}

func TestRequireAdmin_DeniesToLoginNotForbidden(t *testing.T) {
	m := newTestManager(t, mapSource{}, "")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Accept", "text/html")
	req = WithSnapshot(req, session.Snapshot{Session: &session.Session{IsActive: true}})

	rec := httptest.NewRecorder()
	m.RequireAdmin(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/login") {
		t.Errorf("active non-admin must be sent to login, got %q", loc)
	}
}

func TestRequireAdmin_ConfiguredAdminPasses(t *testing.T) {
	id := primitive.NewObjectID()
	src := mapSource{id: {IsActive: false}} // stored flags say neither active nor admin
	m := newTestManager(t, src, "Boss@Example.com")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	if err := m.SignIn(rec, req, session.Identity{AccountID: id, Email: "boss@example.com", AuthMethod: "email"}); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Accept", "text/html")
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	rec2 := httptest.NewRecorder()
	m.LoadSession(m.RequireAdmin(okHandler())).ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("configured admin denied: status %d", rec2.Code)
	}
}

func TestGuard_HTMXRedirect(t *testing.T) {
	m := newTestManager(t, mapSource{}, "")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("HX-Request", "true")
	req = WithSnapshot(req, session.Snapshot{})

	rec := httptest.NewRecorder()
	m.RequireActive(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); !strings.HasPrefix(got, "/login") {
		t.Errorf("HX-Redirect: got %q, want /login", got)
	}
}

func TestGuard_APIGetsPlain401(t *testing.T) {
	m := newTestManager(t, mapSource{}, "")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = WithSnapshot(req, session.Snapshot{})

	rec := httptest.NewRecorder()
	m.RequireActive(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
	if rec.Header().Get("Location") != "" {
		t.Error("API caller should not be redirected")
	}
}

func TestNewManager_RejectsEmptyKey(t *testing.T) {
	_, err := NewManager("", "", false, session.Config{Source: mapSource{}}, zap.NewNop())
	if err == nil {
		t.Error("empty session key should be rejected")
	}
}
