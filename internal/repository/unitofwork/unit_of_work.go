package unitofwork

import (
	"context"

	"docqa-engine/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	QASessionRepository() contract.QASessionRepository
	TurnRepository() contract.TurnRepository
	ClarificationRepository() contract.ClarificationRepository
	TraceRepository() contract.TraceRepository
	DocumentChunkRepository() contract.DocumentChunkRepository
}
