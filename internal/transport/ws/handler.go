package ws

import (
	"context"
	"net/http"

	"github.com/vedran77/pulsefeed/internal/domain"
	"github.com/vedran77/pulsefeed/internal/transport/http/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is optional and travels in ?token=xxx (WebSocket can't send headers
// from browsers); without it the client is an anonymous reader.
func ServeWS(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var user *domain.User
		if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
			u, err := middleware.ParseToken(tokenStr, jwtSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			user = &u
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			hub.logger.Warn("accept error", zap.Error(err))
			return
		}

		client := NewClient(hub, conn, user)
		select {
		case hub.register <- client:
		case <-r.Context().Done():
			conn.CloseNow()
			return
		}

		// The request context ends when the handler returns, so the pumps
		// get their own; the hub's shutdown closes them through done.
		ctx := context.WithoutCancel(r.Context())
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}
