package entity

import (
	"time"

	"github.com/google/uuid"
)

// NodeRun is the per-node outcome of one executed plan.
type NodeRun struct {
	NodeId     string `json:"node_id"`
	Role       string `json:"role"`
	Status     string `json:"status"` // completed | failed | skipped
	Attempts   int    `json:"attempts"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// TraceRecord is the durable execution record for one orchestration run.
// Live progress events are held in the in-memory snapshot cache; this row
// is what survives a restart.
type TraceRecord struct {
	Id        uuid.UUID
	TraceId   string
	SessionId uuid.UUID
	TurnId    *uuid.UUID

	Query    string
	Route    string
	Mode     string
	Status   string
	Attempts int

	PlanNodes []string
	NodeRuns  []NodeRun

	FallbackUsed bool
	DegradedFrom string

	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
