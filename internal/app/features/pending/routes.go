// internal/app/features/pending/routes.go
package pending

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for /pending.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServePending)
	return r
}
