// Package session derives the authorization session for a signed-in
// principal: it merges the principal's identity with its profile
// document and the configured administrator override, and classifies
// the result into an authorization state.
//
// Two entry points exist. Resolve performs one merge synchronously and
// is what the per-request middleware uses. Resolver is the stateful
// form: it consumes a stream of identity events, tracks a latched
// loading flag, discards stale overlapping resolutions, and publishes
// snapshots to subscribers; the session-status stream uses it, with
// Hub fanning profile-change notifications out to live resolvers.
package session

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity is the principal carried by an identity-state event.
// A nil *Identity means signed out.
type Identity struct {
	AccountID  primitive.ObjectID
	Email      string
	AuthMethod string
}

// Session is the merged, client-visible view of a signed-in principal.
// It is derived state: recomputed on every identity event and never
// persisted.
type Session struct {
	AccountID  primitive.ObjectID
	Email      string
	Name       string
	DOB        string
	AuthMethod string
	PhotoURL   string
	IsActive   bool
	IsAdmin    bool
}

// State is the authorization classification of a session.
type State int

const (
	// StateUnauthenticated means no signed-in principal.
	StateUnauthenticated State = iota
	// StatePending means signed in but not yet activated by an admin.
	StatePending
	// StateActive means signed in and activated.
	StateActive
	// StateAdmin means the configured administrator; supersedes
	// pending/active and does not require activation.
	StateAdmin
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateAdmin:
		return "admin"
	default:
		return "unauthenticated"
	}
}

// State classifies the session. A nil session is unauthenticated.
func (s *Session) State() State {
	switch {
	case s == nil:
		return StateUnauthenticated
	case s.IsAdmin:
		return StateAdmin
	case s.IsActive:
		return StateActive
	default:
		return StatePending
	}
}

// Snapshot is the pair consumers see: the current session and whether
// the first resolution is still outstanding.
type Snapshot struct {
	Session *Session
	Loading bool
}

// AdminMatch reports whether email is the configured administrator
// address. Comparison is case-insensitive; a blank configured address
// never matches.
func AdminMatch(adminEmail, email string) bool {
	if adminEmail == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(adminEmail), strings.TrimSpace(email))
}
