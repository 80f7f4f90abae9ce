// Package ws bridges the notify hub to operator UIs over WebSocket.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/linnemanlabs/go-core/log"

	"github.com/yavyy/audience-query-system/internal/notify"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the API token gate in front of this handler is the access control;
	// cross-origin browser clients are expected
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades the connection and streams hub events to it as JSON, one
// message per event, in the order the hub delivered them.
func Handler(hub *notify.Hub, logger log.Logger) http.HandlerFunc {
	if logger == nil {
		logger = log.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
			return
		}

		sub := hub.Subscribe()
		defer sub.Close()
		defer func() { _ = conn.Close() }()

		logger.Info(r.Context(), "operator session attached", "remote", conn.RemoteAddr().String())

		// drain client frames so close/pong handling works; we never expect
		// application data from the UI
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					sub.Close()
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					logger.Warn(r.Context(), "websocket write failed", "error", err)
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}
