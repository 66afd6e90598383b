package service

import (
	"context"
	"time"

	"docqa-engine/internal/dto"
	"docqa-engine/internal/entity"
	"docqa-engine/internal/pkg/serverutils"
	"docqa-engine/internal/repository/specification"
	"docqa-engine/internal/repository/unitofwork"
	"docqa-engine/pkg/utils"

	"github.com/google/uuid"
)

const (
	chunkSize    = 1500
	chunkOverlap = 200
)

type IDocumentService interface {
	Ingest(ctx context.Context, docId string, req *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error)
	GetChunks(ctx context.Context, docId string) ([]*dto.DocumentChunkResponse, error)
	Delete(ctx context.Context, docId string) error
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
	}
}

// Ingest replaces the chunk set of a document and queues embedding.
// Vectors are filled asynchronously by the consumer; until then the new
// chunks simply do not surface in similarity search.
func (s *documentService) Ingest(ctx context.Context, docId string, req *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error) {
	var contents []string
	if len(req.Chunks) > 0 {
		contents = make([]string, len(req.Chunks))
		for i, chunk := range req.Chunks {
			contents[i] = chunk.Content
		}
	} else if req.Content != "" {
		contents = utils.SplitText(req.Content, chunkSize, chunkOverlap)
	} else {
		return nil, serverutils.NewBadRequestError("either content or chunks must be provided")
	}

	chunks := make([]*entity.DocumentChunk, len(contents))
	for i, content := range contents {
		chunks[i] = &entity.DocumentChunk{
			Id:         uuid.New(),
			DocId:      docId,
			ChunkIndex: i,
			Content:    content,
			CreatedAt:  time.Now(),
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.DocumentChunkRepository().DeleteByDocId(ctx, docId); err != nil {
		return nil, err
	}
	if err := uow.DocumentChunkRepository().CreateBulk(ctx, chunks); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	queued := true
	if err := s.publisherService.PublishIndexDocument(ctx, docId); err != nil {
		// chunks are stored, embedding can be retried by re-ingesting
		queued = false
	}

	return &dto.IngestDocumentResponse{
		DocId:      docId,
		ChunkCount: len(chunks),
		Queued:     queued,
	}, nil
}

func (s *documentService) GetChunks(ctx context.Context, docId string) ([]*dto.DocumentChunkResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chunks, err := uow.DocumentChunkRepository().FindAll(ctx,
		specification.ByDocID{DocID: docId},
		specification.OrderBy{Field: "chunk_index"},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.DocumentChunkResponse, len(chunks))
	for i, chunk := range chunks {
		result[i] = &dto.DocumentChunkResponse{
			Id:         chunk.Id.String(),
			DocId:      chunk.DocId,
			ChunkIndex: chunk.ChunkIndex,
			Content:    chunk.Content,
			Indexed:    len(chunk.EmbeddingValue) > 0,
			CreatedAt:  chunk.CreatedAt,
		}
	}
	return result, nil
}

func (s *documentService) Delete(ctx context.Context, docId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.DocumentChunkRepository().DeleteByDocId(ctx, docId)
}
