// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for /dashboard. Every route requires an
// activated (or admin) session.
func Routes(h *Handler, sessionMgr *auth.Manager) chi.Router {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireActive)
	r.Get("/", h.ServeDashboard)
	r.Get("/password", h.ServePasswordForm)
	r.Post("/password", h.HandlePasswordChange)
	return r
}
