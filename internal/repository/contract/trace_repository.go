package contract

import (
	"context"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
)

type TraceRepository interface {
	Create(ctx context.Context, record *entity.TraceRecord) error
	Update(ctx context.Context, record *entity.TraceRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.TraceRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TraceRecord, error)
	FindByTraceId(ctx context.Context, traceId string) (*entity.TraceRecord, error)
}
