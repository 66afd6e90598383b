package implementation

import (
	"context"
	"errors"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/mapper"
	"docqa-engine/internal/model"
	"docqa-engine/internal/repository/contract"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClarificationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ClarificationThreadMapper
}

func NewClarificationRepository(db *gorm.DB) contract.ClarificationRepository {
	return &ClarificationRepositoryImpl{
		db:     db,
		mapper: mapper.NewClarificationThreadMapper(),
	}
}

func (r *ClarificationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ClarificationRepositoryImpl) Create(ctx context.Context, thread *entity.ClarificationThread) error {
	m := r.mapper.ToModel(thread)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*thread = *r.mapper.ToEntity(m)
	return nil
}

func (r *ClarificationRepositoryImpl) Update(ctx context.Context, thread *entity.ClarificationThread) error {
	m := r.mapper.ToModel(thread)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*thread = *r.mapper.ToEntity(m)
	return nil
}

func (r *ClarificationRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ClarificationThread{}, id).Error
}

func (r *ClarificationRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ClarificationThread, error) {
	var m model.ClarificationThread
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ClarificationRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ClarificationThread, error) {
	var models []*model.ClarificationThread
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ClarificationThread, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *ClarificationRepositoryImpl) FindOpenBySession(ctx context.Context, sessionId uuid.UUID) (*entity.ClarificationThread, error) {
	var m model.ClarificationThread
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Where("status = ?", entity.ClarificationStatusOpen).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
