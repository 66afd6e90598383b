package service

import (
	"context"

	"docqa-engine/internal/dto"
	"docqa-engine/internal/pkg/logger"
	"docqa-engine/pkg/qa/metrics"

	"gorm.io/gorm"
)

const engineVersion = "1.0.0"

type ISystemService interface {
	Health(ctx context.Context) *dto.HealthResponse
	MetricsSnapshot() metrics.Snapshot
	GetLogs(level string, limit, offset int) ([]logger.LogEntry, error)
	GetLogById(id string) (*logger.LogEntry, error)
}

type systemService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	logger  logger.ILogger
}

func NewSystemService(db *gorm.DB, m *metrics.Metrics, log logger.ILogger) ISystemService {
	return &systemService{
		db:      db,
		metrics: m,
		logger:  log,
	}
}

func (s *systemService) Health(ctx context.Context) *dto.HealthResponse {
	resp := &dto.HealthResponse{
		Status:   "ok",
		Database: "ok",
		Version:  engineVersion,
	}

	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
	}
	return resp
}

func (s *systemService) MetricsSnapshot() metrics.Snapshot {
	return s.metrics.Snapshot()
}

func (s *systemService) GetLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.logger.GetLogs(level, limit, offset)
}

func (s *systemService) GetLogById(id string) (*logger.LogEntry, error) {
	return s.logger.GetLogById(id)
}
