package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"live-transcript-service/internal/observability/logging"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

// streamHandler pushes a snapshot to the client after every change.
func streamHandler(ctrl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.WithComponent("stream")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		updates, cancel := ctrl.Subscribe()
		defer cancel()

		// Detect client disconnects
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		log.Debug().Str("remote", r.RemoteAddr).Msg("Stream client connected")
		for {
			select {
			case <-closed:
				log.Debug().Str("remote", r.RemoteAddr).Msg("Stream client disconnected")
				return
			case snap := <-updates:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(snap); err != nil {
					log.Debug().Err(err).Msg("Stream write failed")
					return
				}
			}
		}
	}
}
