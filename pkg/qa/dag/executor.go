package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docqa-engine/pkg/qa/evidence"
	"docqa-engine/pkg/qa/plan"
	"docqa-engine/pkg/qa/progress"
	"docqa-engine/pkg/store"
)

// Node outcome statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Output is what a node handler produces. Retrieval-ish nodes fill
// Evidence, text-producing nodes fill Text; both may be set.
type Output struct {
	Text     string
	Evidence []evidence.Item
}

// NodeResult is the recorded outcome of one plan node.
type NodeResult struct {
	NodeID   string
	Type     string
	Status   string
	Attempts int
	Duration time.Duration
	Err      error
	Output   *Output
}

// Handler executes one node given the completed results of its
// dependencies. Handlers must respect ctx cancellation.
type Handler func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error)

// Result is the aggregate outcome of one plan run.
type Result struct {
	Results     map[string]*NodeResult
	Degraded    bool
	FailedNodes []string
	Cancelled   bool
}

// Completed reports whether the node finished successfully.
func (r *Result) Completed(nodeID string) bool {
	res, ok := r.Results[nodeID]
	return ok && res.Status == StatusCompleted
}

// Executor runs a validated plan in topological batches with bounded
// parallelism, per-node timeout and retry, and cooperative cancellation.
type Executor struct {
	handlers map[string]Handler
	emitter  progress.Emitter
}

func NewExecutor(emitter progress.Emitter) *Executor {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	return &Executor{
		handlers: make(map[string]Handler),
		emitter:  emitter,
	}
}

// Register binds a handler to a node capability. Nodes without a handler
// fail at dispatch time, they never hang.
func (e *Executor) Register(nodeType string, h Handler) {
	e.handlers[nodeType] = h
}

// Run executes the plan. A node failure marks its dependents skipped and
// flags degradation; only whole-run cancellation stops the walk early.
// Completed node outputs survive cancellation for partial answers.
func (e *Executor) Run(ctx context.Context, p *plan.ExecutionPlan, traceID string) (*Result, error) {
	batches, err := plan.TopologicalBatches(p)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if p.Budget.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.Budget.Timeout)
		defer cancel()
	}

	e.emitter.Emit(store.ProgressEvent{
		Type:    store.EventPlanCreated,
		TraceID: traceID,
		Payload: map[string]interface{}{
			"plan_id": p.ID,
			"mode":    string(p.Mode),
			"nodes":   p.NodeIDs(),
		},
	})

	result := &Result{
		Results: make(map[string]*NodeResult, len(p.Nodes)),
	}

	maxParallel := p.Budget.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	semaphore := make(chan struct{}, maxParallel)

	total := len(p.Nodes)

	for _, batch := range batches {
		if runCtx.Err() != nil {
			result.Cancelled = true
			result.Degraded = true
			e.markRemaining(batches, result, traceID)
			return result, runCtx.Err()
		}

		// decide skips sequentially so map reads never race with the
		// batch's worker goroutines
		var runnable []plan.PlanNode
		for _, node := range batch {
			if !e.depsCompleted(node, result) {
				e.skip(node, result, traceID)
				continue
			}
			runnable = append(runnable, node)
		}

		var mu sync.Mutex
		var wg sync.WaitGroup

		for _, node := range runnable {
			deps := e.collectDeps(node, result)
			wg.Add(1)
			go func(node plan.PlanNode, deps map[string]*NodeResult) {
				defer wg.Done()

				select {
				case semaphore <- struct{}{}:
				case <-runCtx.Done():
					mu.Lock()
					result.Results[node.ID] = &NodeResult{
						NodeID: node.ID,
						Type:   node.Type,
						Status: StatusSkipped,
						Err:    runCtx.Err(),
					}
					mu.Unlock()
					return
				}
				defer func() { <-semaphore }()

				res := e.runNode(runCtx, node, deps, traceID)

				mu.Lock()
				result.Results[node.ID] = res
				if res.Status == StatusFailed {
					result.Degraded = true
					result.FailedNodes = append(result.FailedNodes, node.ID)
				}
				mu.Unlock()
			}(node, deps)
		}

		wg.Wait()

		completed := 0
		for _, res := range result.Results {
			if res.Status == StatusCompleted {
				completed++
			}
		}
		e.emitter.Emit(store.ProgressEvent{
			Type:    store.EventDagProgress,
			TraceID: traceID,
			Payload: map[string]interface{}{
				"completed": completed,
				"total":     total,
			},
		})
	}

	if runCtx.Err() != nil {
		result.Cancelled = true
		result.Degraded = true
		return result, runCtx.Err()
	}
	return result, nil
}

func (e *Executor) runNode(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult, traceID string) *NodeResult {
	handler, ok := e.handlers[node.Type]
	if !ok {
		e.emitter.Emit(nodeEvent(store.EventWorkerFailed, traceID, node.ID, "no handler"))
		return &NodeResult{
			NodeID: node.ID,
			Type:   node.Type,
			Status: StatusFailed,
			Err:    fmt.Errorf("no handler for node type %q", node.Type),
		}
	}

	maxAttempts := node.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	timeout := time.Duration(node.Budget.TimeoutMs) * time.Millisecond
	backoff := time.Duration(node.Retry.BackoffMs) * time.Millisecond

	e.emitter.Emit(nodeEvent(store.EventWorkerStarted, traceID, node.ID, ""))
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		nodeCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		output, err := handler(nodeCtx, node, deps)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			e.emitter.Emit(nodeEvent(store.EventWorkerCompleted, traceID, node.ID, ""))
			return &NodeResult{
				NodeID:   node.ID,
				Type:     node.Type,
				Status:   StatusCompleted,
				Attempts: attempt,
				Duration: time.Since(start),
				Output:   output,
			}
		}
		lastErr = err

		// the whole run being cancelled is not retryable
		if ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts && backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
		}
	}

	e.emitter.Emit(nodeEvent(store.EventWorkerFailed, traceID, node.ID, lastErr.Error()))
	return &NodeResult{
		NodeID:   node.ID,
		Type:     node.Type,
		Status:   StatusFailed,
		Attempts: maxAttempts,
		Duration: time.Since(start),
		Err:      lastErr,
	}
}

func (e *Executor) depsCompleted(node plan.PlanNode, result *Result) bool {
	for _, dep := range node.DependsOn {
		if !result.Completed(dep) {
			return false
		}
	}
	return true
}

func (e *Executor) collectDeps(node plan.PlanNode, result *Result) map[string]*NodeResult {
	deps := make(map[string]*NodeResult, len(node.DependsOn))
	for _, dep := range node.DependsOn {
		if res, ok := result.Results[dep]; ok {
			deps[dep] = res
		}
	}
	return deps
}

func (e *Executor) skip(node plan.PlanNode, result *Result, traceID string) {
	result.Results[node.ID] = &NodeResult{
		NodeID: node.ID,
		Type:   node.Type,
		Status: StatusSkipped,
	}
	result.Degraded = true
	e.emitter.Emit(nodeEvent(store.EventWorkerSkipped, traceID, node.ID, "dependency failed"))
}

func (e *Executor) markRemaining(batches [][]plan.PlanNode, result *Result, traceID string) {
	for _, batch := range batches {
		for _, node := range batch {
			if _, seen := result.Results[node.ID]; !seen {
				result.Results[node.ID] = &NodeResult{
					NodeID: node.ID,
					Type:   node.Type,
					Status: StatusSkipped,
				}
				e.emitter.Emit(nodeEvent(store.EventWorkerSkipped, traceID, node.ID, "run cancelled"))
			}
		}
	}
}

func nodeEvent(eventType, traceID, nodeID, detail string) store.ProgressEvent {
	event := store.ProgressEvent{
		Type:    eventType,
		TraceID: traceID,
		NodeID:  nodeID,
	}
	if detail != "" {
		event.Payload = map[string]interface{}{"detail": detail}
	}
	return event
}
