package sessionstatus_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/vettahub/internal/app/features/sessionstatus"
	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/session"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// fakeSource is an in-memory ProfileSource the stream resolves against.
type fakeSource struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]models.Profile
}

func (f *fakeSource) GetByAccountID(ctx context.Context, accountID primitive.ObjectID) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[accountID]
	if !ok {
		return nil, profilestore.ErrNotFound
	}
	return &p, nil
}

func (f *fakeSource) set(accountID primitive.ObjectID, p models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[accountID] = p
}

func newTestHandler(t *testing.T, source session.ProfileSource) (*sessionstatus.Handler, *auth.Manager, *session.Hub) {
	t.Helper()
	logger := zap.NewNop()
	cfg := session.Config{Source: source, Log: logger}
	mgr, err := auth.NewManager("test-session-key-for-testing-only", "", false, cfg, logger)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	hub := session.NewHub()
	return sessionstatus.NewHandler(mgr, cfg, hub, logger), mgr, hub
}

func TestServeStream_SignedOutGets401(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeSource{profiles: map[primitive.ObjectID]models.Profile{}})

	req := httptest.NewRequest(http.MethodGet, "/session/status", nil)
	rec := httptest.NewRecorder()
	h.ServeStream(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestServeStream_PushesActivationWithoutPolling(t *testing.T) {
	accountID := primitive.NewObjectID()
	source := &fakeSource{profiles: map[primitive.ObjectID]models.Profile{
		accountID: {AccountID: accountID, Name: "Streamer", Email: "stream@test.com", AuthMethod: "email"},
	}}
	h, mgr, hub := newTestHandler(t, source)

	// Establish the session cookie the stream authenticates with.
	signInRec := httptest.NewRecorder()
	signInReq := httptest.NewRequest(http.MethodGet, "/", nil)
	ident := session.Identity{AccountID: accountID, Email: "stream@test.com", AuthMethod: "email"}
	if err := mgr.SignIn(signInRec, signInReq, ident); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/session/status", nil).WithContext(ctx)
	for _, c := range signInRec.Result().Cookies() {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeStream(rec, req)
	}()

	// Let the initial snapshot land, then flip activation and refresh.
	time.Sleep(100 * time.Millisecond)
	source.set(accountID, models.Profile{AccountID: accountID, Name: "Streamer", Email: "stream@test.com", AuthMethod: "email", IsActive: true})
	hub.Refresh(context.Background(), accountID)
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close on context cancellation")
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"state":"pending"`) {
		t.Errorf("stream missing initial pending snapshot: %q", body)
	}
	if !strings.Contains(body, `"state":"active"`) {
		t.Errorf("stream missing pushed active snapshot: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type: got %q, want %q", ct, "text/event-stream")
	}

	if hub.Watchers(accountID) != 0 {
		t.Error("stream left a watcher registered after teardown")
	}
}
