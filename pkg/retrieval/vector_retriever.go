package retrieval

import (
	"context"
	"fmt"

	"docqa-engine/internal/repository/contract"
	"docqa-engine/pkg/embedding"
)

// VectorRetriever searches document chunks by embedding similarity
// through the pgvector-backed chunk repository.
type VectorRetriever struct {
	chunks    contract.DocumentChunkRepository
	embedder  embedding.Provider
	threshold float64
}

var _ Retriever = &VectorRetriever{}

func NewVectorRetriever(chunks contract.DocumentChunkRepository, embedder embedding.Provider, threshold float64) *VectorRetriever {
	if threshold <= 0 {
		threshold = 0.3
	}
	return &VectorRetriever{
		chunks:    chunks,
		embedder:  embedder,
		threshold: threshold,
	}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, scope []string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = 5
	}

	vector, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := r.chunks.SearchSimilarWithScore(ctx, vector, topK, scope, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	passages := make([]Passage, 0, len(scored))
	for _, s := range scored {
		if s.Chunk == nil {
			continue
		}
		passages = append(passages, Passage{
			ChunkID: s.Chunk.Id.String(),
			DocID:   s.Chunk.DocId,
			Text:    s.Chunk.Content,
			Score:   s.Similarity,
		})
	}
	return passages, nil
}

// Probe checks that the chunk store answers at all for the given scope.
// It deliberately avoids the embedding provider so a slow model cannot
// fail the probe.
func (r *VectorRetriever) Probe(ctx context.Context, scope []string) error {
	specs := scopeSpecs(scope)
	count, err := r.chunks.Count(ctx, specs...)
	if err != nil {
		return fmt.Errorf("probe chunk store: %w", err)
	}
	if count == 0 && len(scope) > 0 {
		return fmt.Errorf("no indexed chunks for scope %v", scope)
	}
	return nil
}
