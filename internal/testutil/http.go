package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PendingSession returns a snapshot for a signed-in but not yet
// activated principal.
func PendingSession() session.Snapshot {
	return session.Snapshot{Session: &session.Session{
		AccountID:  primitive.NewObjectID(),
		Email:      "pending@test.com",
		Name:       "Test Pending",
		AuthMethod: "email",
	}}
}

// ActiveSession returns a snapshot for an activated principal.
func ActiveSession() session.Snapshot {
	return session.Snapshot{Session: &session.Session{
		AccountID:  primitive.NewObjectID(),
		Email:      "active@test.com",
		Name:       "Test Active",
		AuthMethod: "email",
		IsActive:   true,
	}}
}

// AdminSession returns a snapshot for the administrator.
func AdminSession() session.Snapshot {
	return session.Snapshot{Session: &session.Session{
		AccountID:  primitive.NewObjectID(),
		Email:      "admin@test.com",
		Name:       "Test Admin",
		AuthMethod: "email",
		IsActive:   true,
		IsAdmin:    true,
	}}
}

// SignedOutSession returns the snapshot for no signed-in principal.
func SignedOutSession() session.Snapshot {
	return session.Snapshot{}
}

// NewRequest creates a test request carrying the given session snapshot,
// as if the session middleware had already run.
func NewRequest(method, target string, snap session.Snapshot) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	return auth.WithSnapshot(r, snap)
}

// NewFormRequest creates a test POST request with a form-encoded body
// and the given session snapshot.
func NewFormRequest(target string, form map[string]string, snap session.Snapshot) *http.Request {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return auth.WithSnapshot(r, snap)
}

// ResponseRecorder wraps httptest.ResponseRecorder with assertion helpers.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
