package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ilyalazarenkoit/eltis-test/internal/app"
	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// WatchHandler streams progress events over a websocket so a proctor view
// can follow submissions live.
type WatchHandler struct {
	feed     *app.ProgressFeed
	upgrader websocket.Upgrader
}

func NewWatchHandler(feed *app.ProgressFeed) *WatchHandler {
	return &WatchHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundEvent struct {
	Type    string               `json:"type"`
	Payload domain.ProgressEvent `json:"payload"`
}

// ServeWS upgrades the connection and forwards feed events until the client
// disconnects.
func (h *WatchHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.feed.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundEvent{Type: "progress", Payload: ev}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
