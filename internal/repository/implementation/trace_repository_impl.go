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

type TraceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TraceRecordMapper
}

func NewTraceRepository(db *gorm.DB) contract.TraceRepository {
	return &TraceRepositoryImpl{
		db:     db,
		mapper: mapper.NewTraceRecordMapper(),
	}
}

func (r *TraceRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *TraceRepositoryImpl) Create(ctx context.Context, record *entity.TraceRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *TraceRepositoryImpl) Update(ctx context.Context, record *entity.TraceRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *TraceRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.TraceRecord{}, id).Error
}

func (r *TraceRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.TraceRecord, error) {
	var m model.TraceRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TraceRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TraceRecord, error) {
	var models []*model.TraceRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.TraceRecord, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *TraceRepositoryImpl) FindByTraceId(ctx context.Context, traceId string) (*entity.TraceRecord, error) {
	return r.FindOne(ctx, specification.ByTraceID{TraceID: traceId})
}
