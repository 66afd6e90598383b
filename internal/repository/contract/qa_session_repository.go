package contract

import (
	"context"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
)

type QASessionRepository interface {
	Create(ctx context.Context, session *entity.QASession) error
	Update(ctx context.Context, session *entity.QASession) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.QASession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.QASession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
