package implementation

import (
	"context"
	"errors"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/mapper"
	"docqa-engine/internal/model"
	"docqa-engine/internal/repository/contract"
	"docqa-engine/internal/repository/scope"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QASessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.QASessionMapper
}

func NewQASessionRepository(db *gorm.DB) contract.QASessionRepository {
	return &QASessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewQASessionMapper(),
	}
}

func (r *QASessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *QASessionRepositoryImpl) Create(ctx context.Context, session *entity.QASession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *QASessionRepositoryImpl) Update(ctx context.Context, session *entity.QASession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *QASessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.QASession{}, id).Error
}

func (r *QASessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.QASession, error) {
	var m model.QASession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *QASessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.QASession, error) {
	var models []*model.QASession
	query := r.applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByCreatedDesc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.QASession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *QASessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.QASession{}).Count(&count).Error
	return count, err
}
