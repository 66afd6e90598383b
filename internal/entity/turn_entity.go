package entity

import (
	"time"

	"github.com/google/uuid"
)

// Citation points at a specific retrieved chunk used by the answer.
type Citation struct {
	ChunkId string  `json:"chunk_id"`
	DocId   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"excerpt,omitempty"`
}

// Turn is one committed question/answer exchange on a session.
type Turn struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	TraceId   string

	Query       string
	Answer      string
	Route       string
	Mode        string
	Status      string
	Confidence  float64
	Citations   []Citation
	SubProblems []string

	// Enrichment fields, filled at commit time
	Summary  string
	Entities []string
	Tags     []string

	FallbackUsed  bool
	DegradedFrom  string
	LatencyMillis int64

	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
