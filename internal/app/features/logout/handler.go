// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dalemusser/vettahub/internal/app/store/audit"
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/ratelimit"
)

// Handler signs the current principal out.
type Handler struct {
	SessionMgr *auth.Manager
	Audit      *audit.Store
	Log        *zap.Logger
}

func NewHandler(sessionMgr *auth.Manager, auditStore *audit.Store, logger *zap.Logger) *Handler {
	return &Handler{SessionMgr: sessionMgr, Audit: auditStore, Log: logger}
}

// HandleLogout handles POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if snap, ok := auth.CurrentSession(r); ok && snap.Session != nil {
		id := snap.Session.AccountID
		h.Audit.Record(r.Context(), audit.Event{
			Type:      audit.EventLogout,
			AccountID: &id,
			Email:     snap.Session.Email,
			IP:        ratelimit.ClientIP(r),
		})
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("sign-out failed", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
