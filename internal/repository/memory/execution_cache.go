package memory

import (
	"sync"
	"time"

	"docqa-engine/pkg/store"

	"github.com/patrickmn/go-cache"
)

// maxEventsPerTrace bounds the replay buffer so a runaway execution
// cannot grow a snapshot without limit. Older events are dropped first.
const maxEventsPerTrace = 200

// ExecutionCache keeps live execution snapshots keyed by trace id.
// Snapshots expire after a retention window; durable state lives in
// the trace_records table.
type ExecutionCache struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewExecutionCache() *ExecutionCache {
	c := cache.New(30*time.Minute, 5*time.Minute)
	return &ExecutionCache{
		cache: c,
	}
}

func (e *ExecutionCache) Put(snapshot *store.ExecutionSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot.UpdatedAt = time.Now()
	e.cache.Set(snapshot.TraceID, snapshot, cache.DefaultExpiration)
}

func (e *ExecutionCache) Get(traceID string) (*store.ExecutionSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if x, found := e.cache.Get(traceID); found {
		return x.(*store.ExecutionSnapshot), true
	}
	return nil, false
}

// AppendEvent assigns the next sequence number and appends the event to
// the snapshot's replay buffer. Returns the stored event, or false when
// no snapshot exists for the trace.
func (e *ExecutionCache) AppendEvent(traceID string, event store.ProgressEvent) (store.ProgressEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	x, found := e.cache.Get(traceID)
	if !found {
		return store.ProgressEvent{}, false
	}
	snapshot := x.(*store.ExecutionSnapshot)

	event.TraceID = traceID
	event.Seq = nextSeq(snapshot)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	snapshot.Events = append(snapshot.Events, event)
	if len(snapshot.Events) > maxEventsPerTrace {
		snapshot.Events = snapshot.Events[len(snapshot.Events)-maxEventsPerTrace:]
	}
	snapshot.UpdatedAt = time.Now()
	e.cache.Set(traceID, snapshot, cache.DefaultExpiration)
	return event, true
}

// SetStatus updates the snapshot status without touching the event buffer.
func (e *ExecutionCache) SetStatus(traceID string, status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if x, found := e.cache.Get(traceID); found {
		snapshot := x.(*store.ExecutionSnapshot)
		snapshot.Status = status
		snapshot.UpdatedAt = time.Now()
		e.cache.Set(traceID, snapshot, cache.DefaultExpiration)
	}
}

// EventsSince returns events with Seq greater than afterSeq, in order.
func (e *ExecutionCache) EventsSince(traceID string, afterSeq int) []store.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	x, found := e.cache.Get(traceID)
	if !found {
		return nil
	}
	snapshot := x.(*store.ExecutionSnapshot)

	var out []store.ProgressEvent
	for _, ev := range snapshot.Events {
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out
}

func (e *ExecutionCache) Delete(traceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Delete(traceID)
}

func nextSeq(snapshot *store.ExecutionSnapshot) int {
	if len(snapshot.Events) == 0 {
		return 1
	}
	return snapshot.Events[len(snapshot.Events)-1].Seq + 1
}
