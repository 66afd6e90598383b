package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is one indexed passage of a source document together with
// its embedding vector.
type DocumentChunk struct {
	Id             uuid.UUID
	DocId          string
	ChunkIndex     int
	Content        string
	EmbeddingValue []float32
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
