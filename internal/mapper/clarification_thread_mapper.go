package mapper

import (
	"docqa-engine/internal/entity"
	"docqa-engine/internal/model"
)

type ClarificationThreadMapper struct{}

func NewClarificationThreadMapper() *ClarificationThreadMapper {
	return &ClarificationThreadMapper{}
}

func (m *ClarificationThreadMapper) ToEntity(t *model.ClarificationThread) *entity.ClarificationThread {
	if t == nil {
		return nil
	}

	return &entity.ClarificationThread{
		Id:            t.Id,
		SessionId:     t.SessionId,
		OriginalQuery: t.OriginalQuery,
		Question:      t.Question,
		Options:       fromJSONStrings(t.Options),
		Reason:        t.Reason,
		Answer:        t.Answer,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		ResolvedAt:    t.ResolvedAt,
		UpdatedAt:     updatedAtToPtr(t.UpdatedAt),
		DeletedAt:     deletedAtToPtr(t.DeletedAt),
		IsDeleted:     t.DeletedAt.Valid,
	}
}

func (m *ClarificationThreadMapper) ToModel(t *entity.ClarificationThread) *model.ClarificationThread {
	if t == nil {
		return nil
	}

	return &model.ClarificationThread{
		Id:            t.Id,
		SessionId:     t.SessionId,
		OriginalQuery: t.OriginalQuery,
		Question:      t.Question,
		Options:       toJSON(t.Options),
		Reason:        t.Reason,
		Answer:        t.Answer,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		ResolvedAt:    t.ResolvedAt,
		UpdatedAt:     ptrToUpdatedAt(t.UpdatedAt),
		DeletedAt:     ptrToDeletedAt(t.DeletedAt, t.IsDeleted),
	}
}
