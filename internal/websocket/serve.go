package websocket

import (
	"encoding/json"

	"docqa-engine/pkg/store"

	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to the hub for one trace. Events missed
// before the subscription (afterSeq and older are skipped) are replayed
// first; clients deduplicate by seq.
func ServeWs(hub *Hub, c *websocket.Conn, traceID string, replay []store.ProgressEvent) {
	client := &Client{
		Hub:     hub,
		Conn:    c,
		TraceID: traceID,
		Send:    make(chan []byte, 256),
	}
	client.Hub.register <- client

	go client.writePump()

	for _, event := range replay {
		if data, err := json.Marshal(event); err == nil {
			client.Send <- data
		}
	}

	client.readPump()
}
