// internal/app/features/sessionstatus/handler.go
package sessionstatus

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dalemusser/vettahub/internal/app/system/auth"
	"github.com/dalemusser/vettahub/internal/app/system/session"
)

// Handler streams the authorization snapshot for the signed-in
// principal as server-sent events. Each open stream gets its own
// Resolver registered with the Hub, so an admin toggling activation
// (or a password change) pushes a fresh snapshot to the browser
// without polling. The pending page uses this to advance on its own.
type Handler struct {
	SessionMgr *auth.Manager
	SessionCfg session.Config
	Hub        *session.Hub
	Log        *zap.Logger
}

func NewHandler(sessionMgr *auth.Manager, cfg session.Config, hub *session.Hub, logger *zap.Logger) *Handler {
	return &Handler{SessionMgr: sessionMgr, SessionCfg: cfg, Hub: hub, Log: logger}
}

// wireSnapshot is the JSON shape written to the stream.
type wireSnapshot struct {
	Loading bool         `json:"loading"`
	Session *wireSession `json:"session"`
}

type wireSession struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	IsActive bool   `json:"is_active"`
	IsAdmin  bool   `json:"is_admin"`
	State    string `json:"state"`
}

func toWire(snap session.Snapshot) wireSnapshot {
	out := wireSnapshot{Loading: snap.Loading}
	if s := snap.Session; s != nil {
		out.Session = &wireSession{
			Email:    s.Email,
			Name:     s.Name,
			IsActive: s.IsActive,
			IsAdmin:  s.IsAdmin,
			State:    s.State().String(),
		}
	}
	return out
}

// ServeStream handles GET /session/status.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	ident := h.SessionMgr.Identity(r)
	if ident == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// One resolver per connection: it carries the loading latch and the
	// stale-token discipline for this stream's lifetime.
	resolver := session.NewResolver(h.SessionCfg)
	defer resolver.Close()

	snapshots, unsubscribe := resolver.Subscribe()
	defer unsubscribe()

	stop, err := h.Hub.Watch(r.Context(), resolver, *ident)
	if err != nil {
		h.Log.Error("session stream: initial resolution failed", zap.Error(err))
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}
	defer stop()

	h.Log.Debug("session stream opened", zap.String("account_id", ident.AccountID.Hex()))

	for {
		select {
		case <-r.Context().Done():
			h.Log.Debug("session stream closed", zap.String("account_id", ident.AccountID.Hex()))
			return
		case snap, open := <-snapshots:
			if !open {
				return
			}
			payload, err := json.Marshal(toWire(snap))
			if err != nil {
				h.Log.Error("session stream: marshal failed", zap.Error(err))
				return
			}
			if _, err := w.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
