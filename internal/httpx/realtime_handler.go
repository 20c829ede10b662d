package httpx

import (
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-kitchen-orders/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// RealtimeHandler serves the merchant push channel.
type RealtimeHandler struct {
	Hub    *notify.Hub
	Logger *slog.Logger

	upgrader websocket.Upgrader
}

func NewRealtimeHandler(hub *notify.Hub, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		Hub:    hub,
		Logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// merchant pages are served from other origins (mini-program, static host)
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *RealtimeHandler) Register(r chi.Router) {
	r.Get("/ws/merchant", h.serveMerchant)
}

func (h *RealtimeHandler) serveMerchant(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := notify.NewWSConn(ws)
	remote := r.RemoteAddr
	conn.Serve(h.Hub, func(msg []byte) {
		h.Logger.Debug("merchant message", "remote", remote, "bytes", len(msg))
	})
}
