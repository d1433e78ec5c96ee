// internal/app/features/adminpanel/routes.go
package adminpanel

import (
	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for /admin. Every route requires the
// administrator; a signed-in non-admin is redirected to /login.
func Routes(h *Handler, sessionMgr *auth.Manager) chi.Router {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAdmin)
	r.Get("/", h.ServePanel)
	r.Get("/account/{accountID}", h.ServeAccount)
	r.Post("/activate/{accountID}", h.HandleActivate)
	r.Post("/deactivate/{accountID}", h.HandleDeactivate)
	return r
}
