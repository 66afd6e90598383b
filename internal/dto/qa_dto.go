package dto

import (
	"github.com/google/uuid"
)

// QueryOptions overrides the engine's per-request budgets.
type QueryOptions struct {
	TimeoutSec      int `json:"timeout_sec" validate:"omitempty,min=1,max=300"`
	MaxContextChars int `json:"max_context_chars" validate:"omitempty,min=256,max=20000"`
}

type QueryRequest struct {
	SessionId *uuid.UUID    `json:"session_id"`
	TraceId   string        `json:"trace_id" validate:"omitempty,max=64"`
	Query     string        `json:"query" validate:"required,min=1,max=4000"`
	DocScope  []string      `json:"doc_scope" validate:"omitempty,dive,required"`
	Options   *QueryOptions `json:"options"`
}

type ClarificationAnswerRequest struct {
	ThreadId uuid.UUID `json:"thread_id" validate:"required"`
	Answer   string    `json:"answer" validate:"required,min=1,max=2000"`
}

type RetryRequest struct {
	TraceId string `json:"trace_id" validate:"required"`
}

type CitationResponse struct {
	ChunkId string  `json:"chunk_id"`
	DocId   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"excerpt,omitempty"`
}

// ContextBlockResponse is a prior-turn excerpt the router saw while
// scoring the query.
type ContextBlockResponse struct {
	TurnId  string  `json:"turn_id"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

// ClarificationPrompt is returned instead of an answer when the engine
// needs more from the user before it can retrieve anything useful.
type ClarificationPrompt struct {
	ThreadId uuid.UUID `json:"thread_id"`
	Question string    `json:"question"`
	Options  []string  `json:"options,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

type QueryResponse struct {
	TraceId   string     `json:"trace_id"`
	SessionId uuid.UUID  `json:"session_id"`
	TurnId    *uuid.UUID `json:"turn_id,omitempty"`

	Answer     string             `json:"answer,omitempty"`
	Route      string             `json:"route"`
	Mode       string             `json:"mode"`
	Status     string             `json:"status"`
	Confidence float64            `json:"confidence"`
	Citations  []CitationResponse `json:"citations,omitempty"`

	ContextBlocks []ContextBlockResponse `json:"context_blocks,omitempty"`

	Clarification *ClarificationPrompt `json:"clarification,omitempty"`

	FallbackUsed  bool   `json:"fallback_used"`
	DegradedFrom  string `json:"degraded_from,omitempty"`
	LatencyMillis int64  `json:"latency_ms"`
}
