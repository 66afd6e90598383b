package dto

import "time"

type ChunkInput struct {
	Index   int    `json:"index"`
	Content string `json:"content" validate:"required"`
}

// IngestDocumentRequest replaces the chunk set of one document. Raw text
// is split server-side; pre-chunked content is stored as given.
type IngestDocumentRequest struct {
	Content string       `json:"content"`
	Chunks  []ChunkInput `json:"chunks" validate:"omitempty,dive"`
}

type IngestDocumentResponse struct {
	DocId      string `json:"doc_id"`
	ChunkCount int    `json:"chunk_count"`
	Queued     bool   `json:"queued"`
}

type DocumentChunkResponse struct {
	Id         string    `json:"id"`
	DocId      string    `json:"doc_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Indexed    bool      `json:"indexed"`
	CreatedAt  time.Time `json:"created_at"`
}
