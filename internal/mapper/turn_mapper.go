package mapper

import (
	"encoding/json"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/model"
)

type TurnMapper struct{}

func NewTurnMapper() *TurnMapper {
	return &TurnMapper{}
}

func (m *TurnMapper) ToEntity(t *model.Turn) *entity.Turn {
	if t == nil {
		return nil
	}

	var citations []entity.Citation
	if len(t.Citations) > 0 {
		_ = json.Unmarshal(t.Citations, &citations)
	}

	return &entity.Turn{
		Id:            t.Id,
		SessionId:     t.SessionId,
		TraceId:       t.TraceId,
		Query:         t.Query,
		Answer:        t.Answer,
		Route:         t.Route,
		Mode:          t.Mode,
		Status:        t.Status,
		Confidence:    t.Confidence,
		Citations:     citations,
		SubProblems:   fromJSONStrings(t.SubProblems),
		Summary:       t.Summary,
		Entities:      fromJSONStrings(t.Entities),
		Tags:          fromJSONStrings(t.Tags),
		FallbackUsed:  t.FallbackUsed,
		DegradedFrom:  t.DegradedFrom,
		LatencyMillis: t.LatencyMillis,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     updatedAtToPtr(t.UpdatedAt),
		DeletedAt:     deletedAtToPtr(t.DeletedAt),
		IsDeleted:     t.DeletedAt.Valid,
	}
}

func (m *TurnMapper) ToModel(t *entity.Turn) *model.Turn {
	if t == nil {
		return nil
	}

	return &model.Turn{
		Id:            t.Id,
		SessionId:     t.SessionId,
		TraceId:       t.TraceId,
		Query:         t.Query,
		Answer:        t.Answer,
		Route:         t.Route,
		Mode:          t.Mode,
		Status:        t.Status,
		Confidence:    t.Confidence,
		Citations:     toJSON(t.Citations),
		SubProblems:   toJSON(t.SubProblems),
		Summary:       t.Summary,
		Entities:      toJSON(t.Entities),
		Tags:          toJSON(t.Tags),
		FallbackUsed:  t.FallbackUsed,
		DegradedFrom:  t.DegradedFrom,
		LatencyMillis: t.LatencyMillis,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     ptrToUpdatedAt(t.UpdatedAt),
		DeletedAt:     ptrToDeletedAt(t.DeletedAt, t.IsDeleted),
	}
}

func (m *TurnMapper) ToEntities(turns []*model.Turn) []*entity.Turn {
	entities := make([]*entity.Turn, len(turns))
	for i, t := range turns {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
