package events

import "time"

// Event types published to the platform bus. Fine-grained node progress
// stays on the in-process bus; only trace lifecycle leaves the process.
const (
	TypeTraceStarted   = "trace.started"
	TypeTraceCompleted = "trace.completed"
	TypeTraceFailed    = "trace.failed"
	TypeChunkIndexed   = "chunk.indexed"
)

// NewTraceStarted marks the beginning of an orchestration run.
func NewTraceStarted(traceID, sessionID, route, mode string) BaseEvent {
	return BaseEvent{
		Type: TypeTraceStarted,
		Data: map[string]interface{}{
			"trace_id":   traceID,
			"session_id": sessionID,
			"route":      route,
			"mode":       mode,
		},
		OccurredAt: time.Now(),
	}
}

// NewTraceCompleted marks a finished run, fallback or not.
func NewTraceCompleted(traceID, sessionID, status string, fallbackUsed bool, confidence float64) BaseEvent {
	return BaseEvent{
		Type: TypeTraceCompleted,
		Data: map[string]interface{}{
			"trace_id":      traceID,
			"session_id":    sessionID,
			"status":        status,
			"fallback_used": fallbackUsed,
			"confidence":    confidence,
		},
		OccurredAt: time.Now(),
	}
}

// NewTraceFailed marks a run that ended in an error outcome.
func NewTraceFailed(traceID, sessionID, reason string) BaseEvent {
	return BaseEvent{
		Type: TypeTraceFailed,
		Data: map[string]interface{}{
			"trace_id":   traceID,
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}

// NewChunkIndexed marks a document chunk (re)embedded into the corpus.
func NewChunkIndexed(docID string, chunkCount int) BaseEvent {
	return BaseEvent{
		Type: TypeChunkIndexed,
		Data: map[string]interface{}{
			"doc_id":      docID,
			"chunk_count": chunkCount,
		},
		OccurredAt: time.Now(),
	}
}
