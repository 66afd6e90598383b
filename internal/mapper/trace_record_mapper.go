package mapper

import (
	"encoding/json"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/model"
)

type TraceRecordMapper struct{}

func NewTraceRecordMapper() *TraceRecordMapper {
	return &TraceRecordMapper{}
}

func (m *TraceRecordMapper) ToEntity(t *model.TraceRecord) *entity.TraceRecord {
	if t == nil {
		return nil
	}

	var nodeRuns []entity.NodeRun
	if len(t.NodeRuns) > 0 {
		_ = json.Unmarshal(t.NodeRuns, &nodeRuns)
	}

	return &entity.TraceRecord{
		Id:           t.Id,
		TraceId:      t.TraceId,
		SessionId:    t.SessionId,
		TurnId:       t.TurnId,
		Query:        t.Query,
		Route:        t.Route,
		Mode:         t.Mode,
		Status:       t.Status,
		Attempts:     t.Attempts,
		PlanNodes:    fromJSONStrings(t.PlanNodes),
		NodeRuns:     nodeRuns,
		FallbackUsed: t.FallbackUsed,
		DegradedFrom: t.DegradedFrom,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    updatedAtToPtr(t.UpdatedAt),
		DeletedAt:    deletedAtToPtr(t.DeletedAt),
		IsDeleted:    t.DeletedAt.Valid,
	}
}

func (m *TraceRecordMapper) ToModel(t *entity.TraceRecord) *model.TraceRecord {
	if t == nil {
		return nil
	}

	return &model.TraceRecord{
		Id:           t.Id,
		TraceId:      t.TraceId,
		SessionId:    t.SessionId,
		TurnId:       t.TurnId,
		Query:        t.Query,
		Route:        t.Route,
		Mode:         t.Mode,
		Status:       t.Status,
		Attempts:     t.Attempts,
		PlanNodes:    toJSON(t.PlanNodes),
		NodeRuns:     toJSON(t.NodeRuns),
		FallbackUsed: t.FallbackUsed,
		DegradedFrom: t.DegradedFrom,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    ptrToUpdatedAt(t.UpdatedAt),
		DeletedAt:    ptrToDeletedAt(t.DeletedAt, t.IsDeleted),
	}
}
