package mapper

import (
	"docqa-engine/internal/entity"
	"docqa-engine/internal/model"
)

type QASessionMapper struct{}

func NewQASessionMapper() *QASessionMapper {
	return &QASessionMapper{}
}

func (m *QASessionMapper) ToEntity(s *model.QASession) *entity.QASession {
	if s == nil {
		return nil
	}

	return &entity.QASession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		DocScope:  fromJSONStrings(s.DocScope),
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAtToPtr(s.UpdatedAt),
		DeletedAt: deletedAtToPtr(s.DeletedAt),
		IsDeleted: s.DeletedAt.Valid,
	}
}

func (m *QASessionMapper) ToModel(s *entity.QASession) *model.QASession {
	if s == nil {
		return nil
	}

	return &model.QASession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		DocScope:  toJSON(s.DocScope),
		CreatedAt: s.CreatedAt,
		UpdatedAt: ptrToUpdatedAt(s.UpdatedAt),
		DeletedAt: ptrToDeletedAt(s.DeletedAt, s.IsDeleted),
	}
}
