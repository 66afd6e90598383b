package store

import "time"

// Execution statuses
const (
	ExecStatusRunning            = "running"
	ExecStatusCompleted          = "completed"
	ExecStatusDegraded           = "degraded"
	ExecStatusFailed             = "failed"
	ExecStatusAwaitClarification = "await_clarification"
	ExecStatusBlocked            = "blocked"
)

// Progress event types
const (
	EventPlanCreated     = "plan.created"
	EventWorkerStarted   = "worker.started"
	EventWorkerCompleted = "worker.completed"
	EventWorkerFailed    = "worker.failed"
	EventWorkerSkipped   = "worker.skipped"
	EventDagProgress     = "dag.progress"
	EventFallbackStarted = "fallback.started"
	EventFinalReady      = "final.ready"
)

// ProgressEvent is one ordered step of an execution trace. Seq is assigned
// by the snapshot owner and is strictly increasing per trace.
type ProgressEvent struct {
	Seq       int                    `json:"seq"`
	Type      string                 `json:"type"`
	TraceID   string                 `json:"trace_id"`
	NodeID    string                 `json:"node_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ExecutionSnapshot is the in-memory view of a running (or recently
// finished) orchestration, replayable by trace id.
type ExecutionSnapshot struct {
	TraceID   string          `json:"trace_id"`
	SessionID string          `json:"session_id"`
	Query     string          `json:"query"`
	Route     string          `json:"route"`
	Mode      string          `json:"mode"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	Events    []ProgressEvent `json:"events"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
