package controller

import (
	"docqa-engine/internal/pkg/serverutils"
	"docqa-engine/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISystemController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
	Metrics(ctx *fiber.Ctx) error
	GetExecution(ctx *fiber.Ctx) error
	GetLogs(ctx *fiber.Ctx) error
	GetLogById(ctx *fiber.Ctx) error
}

type systemController struct {
	system    service.ISystemService
	execution service.IExecutionService
}

func NewSystemController(system service.ISystemService, execution service.IExecutionService) ISystemController {
	return &systemController{
		system:    system,
		execution: execution,
	}
}

func (c *systemController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/qa/v1")
	h.Get("health", c.Health)
	h.Get("metrics", c.Metrics)
	h.Get("execution/:traceId", c.GetExecution)

	admin := r.Group("/admin/v1")
	admin.Use(serverutils.JwtMiddleware)
	admin.Get("logs", c.GetLogs)
	admin.Get("logs/:id", c.GetLogById)
}

func (c *systemController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success health check", c.system.Health(ctx.Context())))
}

// Metrics is the JSON aggregate view; the Prometheus scrape endpoint is
// mounted separately at /metrics.
func (c *systemController) Metrics(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get metrics", c.system.MetricsSnapshot()))
}

func (c *systemController) GetExecution(ctx *fiber.Ctx) error {
	res, err := c.execution.GetExecution(ctx.Context(), ctx.Params("traceId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get execution", res))
}

func (c *systemController) GetLogs(ctx *fiber.Ctx) error {
	level := ctx.Query("level")
	limit := ctx.QueryInt("limit", 100)
	offset := ctx.QueryInt("offset", 0)

	logs, err := c.system.GetLogs(level, limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get logs", logs))
}

func (c *systemController) GetLogById(ctx *fiber.Ctx) error {
	entry, err := c.system.GetLogById(ctx.Params("id"))
	if err != nil {
		return serverutils.NewNotFoundError("log entry not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get log", entry))
}
