package contract

import (
	"context"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
)

type ClarificationRepository interface {
	Create(ctx context.Context, thread *entity.ClarificationThread) error
	Update(ctx context.Context, thread *entity.ClarificationThread) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ClarificationThread, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ClarificationThread, error)
	// FindOpenBySession returns the open thread for a session, or nil.
	FindOpenBySession(ctx context.Context, sessionId uuid.UUID) (*entity.ClarificationThread, error)
}
