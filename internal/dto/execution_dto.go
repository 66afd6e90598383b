package dto

import (
	"time"

	"github.com/google/uuid"
)

type ProgressEventResponse struct {
	Seq       int64                  `json:"seq"`
	Type      string                 `json:"type"`
	NodeId    string                 `json:"node_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type NodeRunResponse struct {
	NodeId     string `json:"node_id"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ExecutionResponse merges the live snapshot (when still cached) with the
// durable trace record.
type ExecutionResponse struct {
	TraceId   string    `json:"trace_id"`
	SessionId uuid.UUID `json:"session_id"`

	Query    string `json:"query"`
	Route    string `json:"route"`
	Mode     string `json:"mode"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`

	PlanNodes []string          `json:"plan_nodes,omitempty"`
	NodeRuns  []NodeRunResponse `json:"node_runs,omitempty"`

	Events []ProgressEventResponse `json:"events,omitempty"`

	FallbackUsed bool   `json:"fallback_used"`
	DegradedFrom string `json:"degraded_from,omitempty"`
}
