// internal/app/system/session/hub.go
package session

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hub fans identity-refresh events out to the live resolvers watching
// each account. A resolver registers when its connection opens (the
// session-status stream) and is fed a refresh event whenever something
// changes the account's authorization inputs — an admin toggling
// activation, a password change — so watchers re-resolve promptly
// instead of waiting for their next sign-in.
type Hub struct {
	mu      sync.Mutex
	watches map[primitive.ObjectID]map[*Resolver]Identity
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{watches: make(map[primitive.ObjectID]map[*Resolver]Identity)}
}

// Watch registers a resolver for refresh events on the identity's
// account and delivers the initial identity event to it. The returned
// func unregisters; it must be called on connection teardown.
func (h *Hub) Watch(ctx context.Context, r *Resolver, ident Identity) (func(), error) {
	if err := r.OnIdentity(ctx, &ident); err != nil {
		return nil, err
	}

	h.mu.Lock()
	set, ok := h.watches[ident.AccountID]
	if !ok {
		set = make(map[*Resolver]Identity)
		h.watches[ident.AccountID] = set
	}
	set[r] = ident
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		if set, ok := h.watches[ident.AccountID]; ok {
			delete(set, r)
			if len(set) == 0 {
				delete(h.watches, ident.AccountID)
			}
		}
		h.mu.Unlock()
	}, nil
}

// Refresh re-feeds the identity into every resolver watching the
// account. Resolution errors follow each resolver's fetch policy; the
// hub itself does not fail a refresh.
func (h *Hub) Refresh(ctx context.Context, accountID primitive.ObjectID) {
	h.mu.Lock()
	type pair struct {
		r     *Resolver
		ident Identity
	}
	var targets []pair
	for r, ident := range h.watches[accountID] {
		targets = append(targets, pair{r, ident})
	}
	h.mu.Unlock()

	for _, t := range targets {
		ident := t.ident
		_ = t.r.OnIdentity(ctx, &ident)
	}
}

// Watchers reports how many resolvers are watching an account.
func (h *Hub) Watchers(accountID primitive.ObjectID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watches[accountID])
}
