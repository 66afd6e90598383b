package service

import (
	"context"

	"docqa-engine/internal/dto"
	"docqa-engine/internal/entity"
	"docqa-engine/internal/pkg/serverutils"
	"docqa-engine/internal/repository/memory"
	"docqa-engine/internal/repository/unitofwork"
	"docqa-engine/pkg/store"

	"github.com/google/uuid"
)

type IExecutionService interface {
	GetExecution(ctx context.Context, traceId string) (*dto.ExecutionResponse, error)
}

// executionService answers trace lookups from the live snapshot cache
// first and falls back to the durable trace record after eviction.
type executionService struct {
	uowFactory unitofwork.RepositoryFactory
	execCache  *memory.ExecutionCache
}

func NewExecutionService(
	uowFactory unitofwork.RepositoryFactory,
	execCache *memory.ExecutionCache,
) IExecutionService {
	return &executionService{
		uowFactory: uowFactory,
		execCache:  execCache,
	}
}

func (s *executionService) GetExecution(ctx context.Context, traceId string) (*dto.ExecutionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	record, err := uow.TraceRepository().FindByTraceId(ctx, traceId)
	if err != nil {
		return nil, err
	}

	snapshot, cached := s.execCache.Get(traceId)
	if record == nil && !cached {
		return nil, serverutils.NewNotFoundError("trace not found")
	}

	resp := &dto.ExecutionResponse{TraceId: traceId}

	if record != nil {
		resp.SessionId = record.SessionId
		resp.Query = record.Query
		resp.Route = record.Route
		resp.Mode = record.Mode
		resp.Status = record.Status
		resp.Attempts = record.Attempts
		resp.PlanNodes = record.PlanNodes
		resp.NodeRuns = toNodeRunResponses(record.NodeRuns)
		resp.FallbackUsed = record.FallbackUsed
		resp.DegradedFrom = record.DegradedFrom
	}

	if cached {
		// live state wins over the persisted row
		if sessionId, err := uuid.Parse(snapshot.SessionID); err == nil {
			resp.SessionId = sessionId
		}
		resp.Query = snapshot.Query
		resp.Route = snapshot.Route
		resp.Mode = snapshot.Mode
		resp.Status = snapshot.Status
		resp.Attempts = snapshot.Attempts
		resp.Events = toProgressEventResponses(snapshot.Events)
	}

	return resp, nil
}

func toNodeRunResponses(runs []entity.NodeRun) []dto.NodeRunResponse {
	if len(runs) == 0 {
		return nil
	}
	result := make([]dto.NodeRunResponse, len(runs))
	for i, run := range runs {
		result[i] = dto.NodeRunResponse{
			NodeId:     run.NodeId,
			Role:       run.Role,
			Status:     run.Status,
			Attempts:   run.Attempts,
			DurationMs: run.DurationMs,
			Error:      run.Error,
		}
	}
	return result
}

func toProgressEventResponses(events []store.ProgressEvent) []dto.ProgressEventResponse {
	if len(events) == 0 {
		return nil
	}
	result := make([]dto.ProgressEventResponse, len(events))
	for i, event := range events {
		result[i] = dto.ProgressEventResponse{
			Seq:       int64(event.Seq),
			Type:      event.Type,
			NodeId:    event.NodeID,
			Payload:   event.Payload,
			Timestamp: event.Timestamp,
		}
	}
	return result
}
