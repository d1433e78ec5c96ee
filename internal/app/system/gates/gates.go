// Package gates holds the route-guard decision logic as pure functions
// over a session snapshot. Keeping the decisions separate from the
// middleware that enforces them makes the guard semantics testable
// without an HTTP stack.
//
// Two guards exist:
//
//   - Authenticated: protects member pages. Permits an activated user
//     or an administrator; everyone else is sent to the login page.
//   - Admin: protects the admin panel. Permits only an administrator.
//
// Both guards deny to the login route. A signed-in but unauthorized
// principal is treated the same as a signed-out one rather than being
// shown a forbidden page; the login flow re-routes an authenticated
// principal to wherever it actually belongs.
//
// While the snapshot is still loading, neither guard decides: the
// caller holds the request until the first resolution lands.
package gates

import "github.com/dalemusser/vettahub/internal/app/system/session"

// Decision is the outcome of a guard evaluation.
type Decision int

const (
	// Wait means the session is still resolving; render nothing yet.
	Wait Decision = iota
	// Permit means the request may proceed to the protected handler.
	Permit
	// DenyLogin means redirect to the login route.
	DenyLogin
)

func (d Decision) String() string {
	switch d {
	case Permit:
		return "permit"
	case DenyLogin:
		return "deny_login"
	default:
		return "wait"
	}
}

// Authenticated guards member pages: an activated user or an
// administrator passes, anyone else goes to login.
func Authenticated(sess *session.Session, loading bool) Decision {
	if loading {
		return Wait
	}
	if sess == nil {
		return DenyLogin
	}
	if sess.IsActive || sess.IsAdmin {
		return Permit
	}
	return DenyLogin
}

// Admin guards the admin panel: only an administrator passes. An
// activated non-admin is denied to login, same as a signed-out
// visitor.
func Admin(sess *session.Session, loading bool) Decision {
	if loading {
		return Wait
	}
	if sess != nil && sess.IsAdmin {
		return Permit
	}
	return DenyLogin
}
