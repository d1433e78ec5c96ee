package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeSource is a controllable ProfileSource for resolver tests.
type fakeSource struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]*models.Profile
	err      error
	block    chan struct{} // when non-nil, GetByAccountID waits on it
}

func newFakeSource() *fakeSource {
	return &fakeSource{profiles: make(map[primitive.ObjectID]*models.Profile)}
}

func (f *fakeSource) set(id primitive.ObjectID, p *models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = p
}

func (f *fakeSource) GetByAccountID(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	f.mu.Lock()
	block := f.block
	err := f.err
	p := f.profiles[id]
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, profilestore.ErrNotFound
	}
	return p, nil
}

func testConfig(src ProfileSource, adminEmail string) Config {
	return Config{AdminEmail: adminEmail, Source: src}
}

func TestResolve_NilIdentity(t *testing.T) {
	sess, err := Resolve(context.Background(), testConfig(newFakeSource(), "admin@example.com"), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil session for nil identity, got %+v", sess)
	}
}

func TestResolve_AbsentProfileIsEmptyRecord(t *testing.T) {
	src := newFakeSource()
	ident := &Identity{AccountID: primitive.NewObjectID(), Email: "new@example.com", AuthMethod: "google"}

	sess, err := Resolve(context.Background(), testConfig(src, "admin@example.com"), ident)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if sess == nil {
		t.Fatal("expected a session for a principal without a profile")
	}
	if sess.IsActive || sess.IsAdmin {
		t.Errorf("empty record should be inactive non-admin, got %+v", sess)
	}
	if sess.AuthMethod != "google" {
		t.Errorf("auth method should fall back to the identity's, got %q", sess.AuthMethod)
	}
	if sess.State() != StatePending {
		t.Errorf("state: got %v, want pending", sess.State())
	}
}

func TestResolve_AdminOverride(t *testing.T) {
	tests := []struct {
		name       string
		adminEmail string
		identEmail string
		stored     *models.Profile
		wantAdmin  bool
	}{
		{
			name:       "case-insensitive match, no stored field",
			adminEmail: "Admin@Example.Com",
			identEmail: "admin@example.com",
			stored:     &models.Profile{IsActive: true},
			wantAdmin:  true,
		},
		{
			name:       "match overrides stored false",
			adminEmail: "admin@example.com",
			identEmail: "ADMIN@EXAMPLE.COM",
			stored:     &models.Profile{IsAdmin: false},
			wantAdmin:  true,
		},
		{
			name:       "match without any profile document",
			adminEmail: "admin@example.com",
			identEmail: "admin@example.com",
			stored:     nil,
			wantAdmin:  true,
		},
		{
			name:       "non-match keeps stored true",
			adminEmail: "admin@example.com",
			identEmail: "other@example.com",
			stored:     &models.Profile{IsAdmin: true},
			wantAdmin:  true,
		},
		{
			name:       "non-match keeps stored false",
			adminEmail: "admin@example.com",
			identEmail: "other@example.com",
			stored:     &models.Profile{},
			wantAdmin:  false,
		},
		{
			name:       "blank configured admin never matches",
			adminEmail: "",
			identEmail: "admin@example.com",
			stored:     &models.Profile{},
			wantAdmin:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			id := primitive.NewObjectID()
			if tt.stored != nil {
				src.set(id, tt.stored)
			}
			ident := &Identity{AccountID: id, Email: tt.identEmail}

			sess, err := Resolve(context.Background(), testConfig(src, tt.adminEmail), ident)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if sess.IsAdmin != tt.wantAdmin {
				t.Errorf("IsAdmin: got %v, want %v", sess.IsAdmin, tt.wantAdmin)
			}
		})
	}
}

func TestState_AdminSupersedesPending(t *testing.T) {
	s := &Session{IsAdmin: true, IsActive: false}
	if s.State() != StateAdmin {
		t.Errorf("admin with inactive profile: got %v, want admin", s.State())
	}

	s = &Session{IsActive: true}
	if s.State() != StateActive {
		t.Errorf("active non-admin: got %v, want active", s.State())
	}

	var nilSess *Session
	if nilSess.State() != StateUnauthenticated {
		t.Errorf("nil session: got %v, want unauthenticated", nilSess.State())
	}
}

func TestResolver_LoadingLatchesFalse(t *testing.T) {
	src := newFakeSource()
	r := NewResolver(testConfig(src, "admin@example.com"))

	if snap := r.Snapshot(); !snap.Loading {
		t.Fatal("resolver should start loading")
	}

	if err := r.OnIdentity(context.Background(), nil); err != nil {
		t.Fatalf("OnIdentity failed: %v", err)
	}
	if snap := r.Snapshot(); snap.Loading {
		t.Error("loading should latch false after the first event")
	}

	// Further events never re-enter loading.
	id := primitive.NewObjectID()
	src.set(id, &models.Profile{IsActive: true})
	if err := r.OnIdentity(context.Background(), &Identity{AccountID: id, Email: "u@example.com"}); err != nil {
		t.Fatalf("OnIdentity failed: %v", err)
	}
	if snap := r.Snapshot(); snap.Loading {
		t.Error("loading must stay false for the resolver's lifetime")
	}
}

func TestResolver_StaleResolutionDiscarded(t *testing.T) {
	src := newFakeSource()
	id := primitive.NewObjectID()
	src.set(id, &models.Profile{IsActive: true, Name: "First"})

	r := NewResolver(testConfig(src, ""))

	// First event blocks inside the profile fetch.
	release := make(chan struct{})
	src.mu.Lock()
	src.block = release
	src.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.OnIdentity(context.Background(), &Identity{AccountID: id, Email: "u@example.com"})
	}()

	// Give the first resolution time to take its token and enter the fetch.
	time.Sleep(20 * time.Millisecond)

	// Second event: sign-out. Resolves immediately (no fetch) and wins.
	src.mu.Lock()
	src.block = nil
	src.mu.Unlock()
	if err := r.OnIdentity(context.Background(), nil); err != nil {
		t.Fatalf("OnIdentity failed: %v", err)
	}

	// Release the first, slower resolution. It holds a stale token and
	// must not overwrite the sign-out.
	close(release)
	<-done

	snap := r.Snapshot()
	if snap.Session != nil {
		t.Errorf("stale resolution overwrote newer state: %+v", snap.Session)
	}
	if r.StaleDiscards() != 1 {
		t.Errorf("stale discards: got %d, want 1", r.StaleDiscards())
	}
}

func TestResolver_FetchPolicySignedOut(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("backend down")

	r := NewResolver(Config{AdminEmail: "", Source: src, Policy: PolicySignedOut})
	err := r.OnIdentity(context.Background(), &Identity{AccountID: primitive.NewObjectID(), Email: "u@example.com"})
	if err != nil {
		t.Fatalf("signed_out policy should swallow the error, got %v", err)
	}

	snap := r.Snapshot()
	if snap.Session != nil {
		t.Error("signed_out policy should publish a nil session")
	}
	if snap.Loading {
		t.Error("signed_out policy still resolves the event")
	}
}

func TestResolver_FetchPolicyError(t *testing.T) {
	src := newFakeSource()
	id := primitive.NewObjectID()
	src.set(id, &models.Profile{IsActive: true})

	r := NewResolver(Config{AdminEmail: "", Source: src, Policy: PolicyError})
	if err := r.OnIdentity(context.Background(), &Identity{AccountID: id, Email: "u@example.com"}); err != nil {
		t.Fatalf("OnIdentity failed: %v", err)
	}
	before := r.Snapshot()

	src.mu.Lock()
	src.err = errors.New("backend down")
	src.mu.Unlock()

	err := r.OnIdentity(context.Background(), &Identity{AccountID: id, Email: "u@example.com"})
	if err == nil {
		t.Fatal("error policy should surface the fetch failure")
	}

	after := r.Snapshot()
	if after.Session != before.Session {
		t.Error("error policy must keep the previously published state")
	}
}

func TestResolver_SubscribeAndTeardown(t *testing.T) {
	src := newFakeSource()
	id := primitive.NewObjectID()
	src.set(id, &models.Profile{IsActive: true})

	r := NewResolver(testConfig(src, ""))

	ch, unsub := r.Subscribe()

	// Seeded with the loading snapshot.
	snap := <-ch
	if !snap.Loading {
		t.Error("initial snapshot should be loading")
	}

	if err := r.OnIdentity(context.Background(), &Identity{AccountID: id, Email: "u@example.com"}); err != nil {
		t.Fatalf("OnIdentity failed: %v", err)
	}
	snap = <-ch
	if snap.Loading || snap.Session == nil || !snap.Session.IsActive {
		t.Errorf("unexpected snapshot after event: %+v", snap)
	}

	unsub()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	unsub() // idempotent

	// A slow subscriber sees the latest state, not a backlog.
	ch2, unsub2 := r.Subscribe()
	defer unsub2()
	<-ch2 // drain seed
	_ = r.OnIdentity(context.Background(), nil)
	_ = r.OnIdentity(context.Background(), &Identity{AccountID: id, Email: "u@example.com"})
	snap = <-ch2
	if snap.Session == nil {
		t.Error("slow subscriber should see the newest snapshot")
	}

	r.Close()
	if err := r.OnIdentity(context.Background(), nil); err == nil {
		t.Error("OnIdentity after Close should fail")
	}
}

func TestHub_RefreshReachesWatchers(t *testing.T) {
	src := newFakeSource()
	id := primitive.NewObjectID()
	src.set(id, &models.Profile{IsActive: false})

	hub := NewHub()
	r := NewResolver(testConfig(src, ""))
	ident := Identity{AccountID: id, Email: "u@example.com"}

	stop, err := hub.Watch(context.Background(), r, ident)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if hub.Watchers(id) != 1 {
		t.Fatalf("watchers: got %d, want 1", hub.Watchers(id))
	}
	if snap := r.Snapshot(); snap.Session == nil || snap.Session.IsActive {
		t.Fatalf("initial resolution wrong: %+v", snap.Session)
	}

	// Admin activates the profile; a refresh re-resolves the watcher.
	src.set(id, &models.Profile{IsActive: true})
	hub.Refresh(context.Background(), id)
	if snap := r.Snapshot(); snap.Session == nil || !snap.Session.IsActive {
		t.Errorf("refresh did not re-resolve: %+v", snap.Session)
	}

	stop()
	if hub.Watchers(id) != 0 {
		t.Errorf("watchers after stop: got %d, want 0", hub.Watchers(id))
	}
}
