package handler

import (
	"docqa-engine/internal/pkg/logger"
	"docqa-engine/internal/pkg/serverutils"
	"docqa-engine/internal/repository/memory"
	internalWS "docqa-engine/internal/websocket"
	"docqa-engine/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ProgressHandler upgrades websocket connections that watch a single
// execution trace and replays the buffered snapshot on subscribe.
type ProgressHandler struct {
	hub       *internalWS.Hub
	execCache *memory.ExecutionCache
	logger    logger.ILogger
}

func NewProgressHandler(hub *internalWS.Hub, execCache *memory.ExecutionCache, log logger.ILogger) *ProgressHandler {
	return &ProgressHandler{
		hub:       hub,
		execCache: execCache,
		logger:    log,
	}
}

// ServeWs subscribes the caller to one trace's progress stream. The
// optional after_seq query skips events the client already holds.
func (h *ProgressHandler) ServeWs(c *fiber.Ctx) error {
	traceID := c.Params("traceId")
	if traceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "missing trace id"))
	}

	afterSeq := c.QueryInt("after_seq", 0)

	var replay []store.ProgressEvent
	if _, ok := h.execCache.Get(traceID); ok {
		replay = h.execCache.EventsSince(traceID, afterSeq)
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ProgressHandler", "Trace subscription opened", map[string]interface{}{"trace_id": traceID})
			internalWS.ServeWs(h.hub, conn, traceID, replay)
			h.logger.Info("ProgressHandler", "Trace subscription closed", map[string]interface{}{"trace_id": traceID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *ProgressHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/qa/v1/progress/:traceId", h.ServeWs)
}
