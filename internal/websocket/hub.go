package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"docqa-engine/internal/pkg/logger"
	"docqa-engine/pkg/store"

	"github.com/redis/go-redis/v9"
)

// redisChannel carries progress events between engine instances so a
// client can watch a trace that runs on another node.
const redisChannel = "qa_progress_events"

// Hub fans execution progress out to websocket subscribers keyed by
// trace id.
type Hub struct {
	// traceID -> subscribed clients (a trace can have several watchers)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    *redis.Client
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.TraceID] = append(h.clients[client.TraceID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client subscribed", map[string]interface{}{"trace_id": client.TraceID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.TraceID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.TraceID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.TraceID]) == 0 {
					delete(h.clients, client.TraceID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish delivers one progress event to local watchers of its trace and
// forwards it to sibling instances through Redis.
func (h *Hub) Publish(event store.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.deliverLocal(event.TraceID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"trace_id": event.TraceID,
			"message":  json.RawMessage(data),
		})
		h.rdb.Publish(context.Background(), redisChannel, payload)
	}
}

func (h *Hub) deliverLocal(traceID string, data []byte) {
	h.mu.RLock()
	clients := h.clients[traceID]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client buffer full, dropping subscriber", map[string]interface{}{"trace_id": traceID})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TraceID string          `json:"trace_id"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}
		h.deliverLocal(payload.TraceID, payload.Message)
	}
}
