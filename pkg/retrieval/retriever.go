package retrieval

import "context"

// Passage is one retrieved evidence candidate.
type Passage struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Retriever is the search collaborator of the orchestration pipeline.
// Implementations may be slow or unavailable; callers wrap calls in
// timeouts and treat errors as degradation signals, not fatal.
type Retriever interface {
	// Retrieve returns up to topK passages relevant to query. An empty
	// scope searches the whole corpus; otherwise only the given doc ids.
	Retrieve(ctx context.Context, query string, scope []string, topK int) ([]Passage, error)

	// Probe is a cheap availability check used by the router to estimate
	// retrieval sufficiency before committing to a grounded plan.
	Probe(ctx context.Context, scope []string) error
}
