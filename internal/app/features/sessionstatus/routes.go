// internal/app/features/sessionstatus/routes.go
package sessionstatus

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for /session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.ServeStream)
	return r
}
