package contract

import (
	"context"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
)

type TurnRepository interface {
	Create(ctx context.Context, turn *entity.Turn) error
	Update(ctx context.Context, turn *entity.Turn) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Turn, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// FindRecentBySession returns the newest turns for a session, newest first.
	FindRecentBySession(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.Turn, error)
}
