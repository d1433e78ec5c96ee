// internal/app/system/session/resolver.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	profilestore "github.com/dalemusser/vettahub/internal/app/store/profiles"
	"github.com/dalemusser/vettahub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProfileSource fetches the profile document for an account. It must
// return profilestore.ErrNotFound (possibly wrapped) when no document
// exists; any other error is a fetch failure subject to FetchPolicy.
type ProfileSource interface {
	GetByAccountID(ctx context.Context, accountID primitive.ObjectID) (*models.Profile, error)
}

// FetchPolicy decides what a resolver does when the profile fetch
// fails for a reason other than the document being absent.
type FetchPolicy int

const (
	// PolicySignedOut treats a fetch failure as a signed-out principal:
	// a nil session is published and the error is only logged.
	PolicySignedOut FetchPolicy = iota
	// PolicyError keeps the previously published state and surfaces the
	// error to the caller of OnIdentity.
	PolicyError
)

// ParseFetchPolicy maps a config string to a FetchPolicy.
func ParseFetchPolicy(s string) (FetchPolicy, error) {
	switch s {
	case "", "signed_out":
		return PolicySignedOut, nil
	case "error":
		return PolicyError, nil
	default:
		return PolicySignedOut, fmt.Errorf("unknown session_fetch_policy %q (want signed_out or error)", s)
	}
}

// Config carries the resolver inputs shared by Resolve and Resolver.
type Config struct {
	AdminEmail string
	Source     ProfileSource
	Policy     FetchPolicy
	Log        *zap.Logger
}

// Resolve performs a single identity-to-session merge:
//
//  1. nil identity → nil session.
//  2. Fetch the profile keyed by the account ID. An absent document is
//     an empty record, not an error — a first-time federated sign-in
//     is representable before its profile is written.
//  3. Force IsAdmin when the identity email matches the configured
//     administrator address, overriding any stored value.
//
// Fetch failures are returned untranslated; policy handling belongs to
// the stateful Resolver (and to the middleware, which applies the same
// policy).
func Resolve(ctx context.Context, cfg Config, ident *Identity) (*Session, error) {
	if ident == nil {
		return nil, nil
	}

	var p *models.Profile
	got, err := cfg.Source.GetByAccountID(ctx, ident.AccountID)
	switch {
	case err == nil:
		p = got
	case errors.Is(err, profilestore.ErrNotFound):
		p = &models.Profile{} // lenient: principal exists, no stored attributes
	default:
		return nil, err
	}

	s := &Session{
		AccountID:  ident.AccountID,
		Email:      ident.Email,
		Name:       p.Name,
		DOB:        p.DOB,
		AuthMethod: p.AuthMethod,
		PhotoURL:   p.PhotoURL,
		IsActive:   p.IsActive,
		IsAdmin:    p.IsAdmin,
	}
	if s.AuthMethod == "" {
		s.AuthMethod = ident.AuthMethod
	}
	if AdminMatch(cfg.AdminEmail, ident.Email) {
		s.IsAdmin = true
	}
	return s, nil
}

// Resolver consumes identity events for one client connection and
// publishes merged snapshots.
//
// Loading starts true and latches false once the first event resolves;
// it never re-enters loading. Each event takes a monotonically
// increasing token, and a resolution may publish only while it still
// holds the latest token — overlapping resolutions that lose the race
// are discarded rather than clobbering newer state.
type Resolver struct {
	cfg Config

	mu      sync.Mutex
	token   uint64
	session *Session
	loading bool
	closed  bool
	nextSub int
	subs    map[int]chan Snapshot
	stale   uint64
}

// NewResolver creates a Resolver in the loading state.
func NewResolver(cfg Config) *Resolver {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Resolver{
		cfg:     cfg,
		loading: true,
		subs:    make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current published state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Session: r.session, Loading: r.loading}
}

// OnIdentity handles one identity-state event, re-running the full
// merge. Safe for concurrent use; if events overlap, only the newest
// event's result is published.
func (r *Resolver) OnIdentity(ctx context.Context, ident *Identity) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("session: resolver is closed")
	}
	r.token++
	tok := r.token
	r.mu.Unlock()

	sess, err := Resolve(ctx, r.cfg, ident)
	if err != nil {
		if r.cfg.Policy == PolicyError {
			// Keep published state; the event is unresolved, so the
			// loading latch stays wherever it was.
			return fmt.Errorf("session: profile fetch: %w", err)
		}
		r.cfg.Log.Warn("profile fetch failed, treating principal as signed out",
			zap.Error(err))
		sess = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if tok != r.token {
		r.stale++
		r.cfg.Log.Debug("discarding stale session resolution",
			zap.Uint64("token", tok),
			zap.Uint64("latest", r.token))
		return nil
	}
	r.session = sess
	r.loading = false
	r.broadcastLocked()
	return nil
}

// Subscribe registers a consumer. The returned channel has capacity
// one and always holds the most recent snapshot: a slow consumer sees
// the latest state, not a backlog. The unsubscribe func is idempotent
// and must be called on teardown.
func (r *Resolver) Subscribe() (<-chan Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan Snapshot, 1)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	r.subs[id] = ch

	// Seed with the current state so a subscriber never waits for the
	// next event to learn where things stand.
	ch <- Snapshot{Session: r.session, Loading: r.loading}

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

// Close tears down the resolver and all subscriber channels.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

// StaleDiscards reports how many resolutions were discarded for
// carrying a stale token.
func (r *Resolver) StaleDiscards() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

func (r *Resolver) broadcastLocked() {
	snap := Snapshot{Session: r.session, Loading: r.loading}
	for _, ch := range r.subs {
		// Replace a pending unread snapshot instead of blocking.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
