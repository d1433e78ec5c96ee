// internal/app/features/pending/handler.go
package pending

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

// Handler serves the pending-approval page shown to a signed-in but
// not-yet-activated principal. The session is kept alive here; the
// page listens on the session-status stream and moves on by itself
// once an admin flips the activation switch.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

type pendingData struct {
	viewdata.BaseVM
}

// ServePending handles GET /pending.
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	snap, ok := auth.CurrentSession(r)
	if !ok || snap.Session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// Already authorized principals don't belong here.
	switch {
	case snap.Session.IsAdmin:
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	case snap.Session.IsActive:
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	templates.Render(w, r, "pending", pendingData{
		BaseVM: viewdata.NewBaseVM(r, "Awaiting activation", "/"),
	})
}
