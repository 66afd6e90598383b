package service

import (
	"docqa-engine/internal/repository/memory"
	"docqa-engine/pkg/qa/progress"
	"docqa-engine/pkg/store"
)

// snapshotEmitter sequences every progress event into the execution
// cache before fanning it out. The cache owns Seq assignment, so replay
// and live subscribers observe the same ordering.
type snapshotEmitter struct {
	cache *memory.ExecutionCache
	next  progress.Emitter
}

func newSnapshotEmitter(cache *memory.ExecutionCache, next progress.Emitter) progress.Emitter {
	if next == nil {
		next = progress.NopEmitter{}
	}
	return &snapshotEmitter{cache: cache, next: next}
}

func (e *snapshotEmitter) Emit(event store.ProgressEvent) {
	if sequenced, ok := e.cache.AppendEvent(event.TraceID, event); ok {
		e.next.Emit(sequenced)
		return
	}
	e.next.Emit(event)
}
