package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title    string   `json:"title"`
	DocScope []string `json:"doc_scope" validate:"omitempty,dive,required"`
}

type SessionResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	DocScope  []string   `json:"doc_scope,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type TurnResponse struct {
	Id        uuid.UUID `json:"id"`
	SessionId uuid.UUID `json:"session_id"`
	TraceId   string    `json:"trace_id"`

	Query      string             `json:"query"`
	Answer     string             `json:"answer"`
	Route      string             `json:"route"`
	Mode       string             `json:"mode"`
	Status     string             `json:"status"`
	Confidence float64            `json:"confidence"`
	Citations  []CitationResponse `json:"citations,omitempty"`

	Summary  string   `json:"summary,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	FallbackUsed  bool      `json:"fallback_used"`
	DegradedFrom  string    `json:"degraded_from,omitempty"`
	LatencyMillis int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
