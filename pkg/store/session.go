package store

// EvidenceSource identifies where a retrieved passage came from.
type EvidenceSource struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Score   float32 `json:"score"`
}

// SessionState represents the active session runtime state in memory.
// Durable turn history lives in Postgres; this only carries what the
// pipeline needs between consecutive requests on the same session.
type SessionState struct {
	ID       string   `json:"id"` // QASession ID
	DocScope []string `json:"doc_scope"`

	// Open clarification thread, if any. At most one per session.
	PendingThreadID string `json:"pending_thread_id"`

	// Metadata for last interaction
	LastQuery string `json:"last_query"`
	LastRoute string `json:"last_route"`
}
