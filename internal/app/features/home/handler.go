// internal/app/features/home/handler.go
package home

import (
	"net/http"

	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// ServeRoot handles GET /. A signed-in visitor is sent to where they
// belong; everyone else sees the landing page.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	if snap, ok := auth.CurrentSession(r); ok && snap.Session != nil {
		switch {
		case snap.Session.IsAdmin:
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
		case snap.Session.IsActive:
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		default:
			http.Redirect(w, r, "/pending", http.StatusSeeOther)
		}
		return
	}

	data := struct {
		viewdata.BaseVM
	}{
		BaseVM: viewdata.NewBaseVM(r, "Welcome", "/"),
	}
	templates.Render(w, r, "home", data)
}
