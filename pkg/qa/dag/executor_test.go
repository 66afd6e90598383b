package dag

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docqa-engine/pkg/qa/evidence"
	"docqa-engine/pkg/qa/plan"
	"docqa-engine/pkg/store"
)

func testPlan(budget plan.Budget, nodes ...plan.PlanNode) *plan.ExecutionPlan {
	return &plan.ExecutionPlan{
		ID:     "test-plan",
		Query:  "q",
		Nodes:  nodes,
		Budget: budget,
	}
}

func testNode(id, nodeType string, deps ...string) plan.PlanNode {
	return plan.PlanNode{
		ID:        id,
		Type:      nodeType,
		DependsOn: deps,
		Budget:    plan.NodeBudget{TimeoutMs: 2000},
		Retry:     plan.RetryPolicy{MaxAttempts: 1},
	}
}

func TestRunLinearChain(t *testing.T) {
	ex := NewExecutor(nil)

	var mu sync.Mutex
	var order []string

	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		mu.Lock()
		order = append(order, node.ID)
		mu.Unlock()
		return &Output{Evidence: []evidence.Item{{ID: "c1", Text: "passage"}}}, nil
	})
	ex.Register(plan.TypeWrite, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		if deps["retrieve"] == nil || len(deps["retrieve"].Output.Evidence) != 1 {
			t.Error("write node did not receive retrieve output")
		}
		mu.Lock()
		order = append(order, node.ID)
		mu.Unlock()
		return &Output{Text: "answer"}, nil
	})

	p := testPlan(plan.DefaultBudget(),
		testNode("retrieve", plan.TypeRetrieve),
		testNode("write", plan.TypeWrite, "retrieve"),
	)

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.Completed("retrieve") || !res.Completed("write") {
		t.Errorf("expected both nodes completed, got %+v", res.Results)
	}
	if res.Degraded {
		t.Error("clean run must not be degraded")
	}
	if len(order) != 2 || order[0] != "retrieve" || order[1] != "write" {
		t.Errorf("execution order = %v", order)
	}
}

func TestRunBoundsParallelism(t *testing.T) {
	ex := NewExecutor(nil)

	var running, peak int32
	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		now := atomic.AddInt32(&running, 1)
		for {
			seen := atomic.LoadInt32(&peak)
			if now <= seen || atomic.CompareAndSwapInt32(&peak, seen, now) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return &Output{}, nil
	})

	budget := plan.DefaultBudget()
	budget.MaxParallel = 2
	p := testPlan(budget,
		testNode("r1", plan.TypeRetrieve),
		testNode("r2", plan.TypeRetrieve),
		testNode("r3", plan.TypeRetrieve),
		testNode("r4", plan.TypeRetrieve),
	)

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		if !res.Completed(id) {
			t.Errorf("node %s not completed", id)
		}
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak parallelism = %d, want <= 2", got)
	}
}

func TestRunFailureSkipsDependents(t *testing.T) {
	ex := NewExecutor(nil)

	attempts := 0
	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		attempts++
		return nil, errors.New("index unavailable")
	})
	ex.Register(plan.TypeWrite, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		t.Error("write must not run when its dependency failed")
		return &Output{}, nil
	})

	p := testPlan(plan.DefaultBudget(),
		plan.PlanNode{
			ID:     "retrieve",
			Type:   plan.TypeRetrieve,
			Budget: plan.NodeBudget{TimeoutMs: 2000},
			Retry:  plan.RetryPolicy{MaxAttempts: 2, BackoffMs: 1},
		},
		testNode("write", plan.TypeWrite, "retrieve"),
	)

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err != nil {
		t.Fatalf("node failure must not abort the run: %v", err)
	}

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if res.Results["retrieve"].Status != StatusFailed {
		t.Errorf("retrieve status = %s, want failed", res.Results["retrieve"].Status)
	}
	if res.Results["write"].Status != StatusSkipped {
		t.Errorf("write status = %s, want skipped", res.Results["write"].Status)
	}
	if !res.Degraded {
		t.Error("failed node must flag degradation")
	}
	if len(res.FailedNodes) != 1 || res.FailedNodes[0] != "retrieve" {
		t.Errorf("FailedNodes = %v", res.FailedNodes)
	}
}

func TestRunRetryRecovers(t *testing.T) {
	ex := NewExecutor(nil)

	calls := 0
	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return &Output{Text: "ok"}, nil
	})

	p := testPlan(plan.DefaultBudget(),
		plan.PlanNode{
			ID:     "retrieve",
			Type:   plan.TypeRetrieve,
			Budget: plan.NodeBudget{TimeoutMs: 2000},
			Retry:  plan.RetryPolicy{MaxAttempts: 3, BackoffMs: 1},
		},
	)

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Completed("retrieve") {
		t.Fatal("retry should have recovered the node")
	}
	if res.Results["retrieve"].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Results["retrieve"].Attempts)
	}
	if res.Degraded {
		t.Error("recovered run must not be degraded")
	}
}

func TestRunMissingHandlerFails(t *testing.T) {
	ex := NewExecutor(nil)

	p := testPlan(plan.DefaultBudget(), testNode("reason", plan.TypeReason))

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Results["reason"].Status != StatusFailed {
		t.Errorf("status = %s, want failed", res.Results["reason"].Status)
	}
	if res.Results["reason"].Err == nil {
		t.Error("missing handler must surface an error")
	}
}

func TestRunNodeTimeout(t *testing.T) {
	ex := NewExecutor(nil)

	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return &Output{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	p := testPlan(plan.DefaultBudget(),
		plan.PlanNode{
			ID:     "retrieve",
			Type:   plan.TypeRetrieve,
			Budget: plan.NodeBudget{TimeoutMs: 30},
			Retry:  plan.RetryPolicy{MaxAttempts: 1},
		},
	)

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err != nil {
		t.Fatalf("a node timeout must not abort the run: %v", err)
	}
	if res.Results["retrieve"].Status != StatusFailed {
		t.Errorf("status = %s, want failed", res.Results["retrieve"].Status)
	}
	if !res.Degraded {
		t.Error("timeout must flag degradation")
	}
}

func TestRunBudgetTimeoutPreservesCompletedWork(t *testing.T) {
	ex := NewExecutor(nil)

	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		return &Output{Text: "kept"}, nil
	})
	ex.Register(plan.TypeWrite, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	budget := plan.DefaultBudget()
	budget.Timeout = 50 * time.Millisecond
	p := testPlan(budget,
		testNode("retrieve", plan.TypeRetrieve),
		testNode("write", plan.TypeWrite, "retrieve"),
	)

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err == nil {
		t.Fatal("budget timeout should surface as a run error")
	}
	if !res.Cancelled || !res.Degraded {
		t.Errorf("Cancelled=%v Degraded=%v, want both true", res.Cancelled, res.Degraded)
	}
	if !res.Completed("retrieve") {
		t.Error("completed outputs must survive cancellation")
	}
	if res.Results["retrieve"].Output.Text != "kept" {
		t.Error("completed output lost")
	}
	if res.Results["write"].Status == StatusCompleted {
		t.Error("write must not complete after the budget expired")
	}
}

type captureEmitter struct {
	mu     sync.Mutex
	events []store.ProgressEvent
}

func (c *captureEmitter) Emit(event store.ProgressEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func TestRunProgressCountsOnlyCompletedNodes(t *testing.T) {
	em := &captureEmitter{}
	ex := NewExecutor(em)

	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		return &Output{}, nil
	})
	ex.Register(plan.TypeWrite, func(ctx context.Context, node plan.PlanNode, deps map[string]*NodeResult) (*Output, error) {
		return nil, errors.New("provider down")
	})

	// independent nodes, one batch: one succeeds, one fails
	p := testPlan(plan.DefaultBudget(),
		testNode("retrieve", plan.TypeRetrieve),
		testNode("write", plan.TypeWrite),
	)

	res, err := ex.Run(context.Background(), p, "trace-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Completed("retrieve") || res.Results["write"].Status != StatusFailed {
		t.Fatalf("unexpected node statuses: %+v", res.Results)
	}

	var progress []store.ProgressEvent
	for _, event := range em.events {
		if event.Type == store.EventDagProgress {
			progress = append(progress, event)
		}
	}
	if len(progress) == 0 {
		t.Fatal("no dag.progress events emitted")
	}
	last := progress[len(progress)-1]
	if last.Payload["completed"] != 1 {
		t.Errorf("completed = %v, want 1 (failed nodes must not count)", last.Payload["completed"])
	}
	if last.Payload["total"] != 2 {
		t.Errorf("total = %v, want 2", last.Payload["total"])
	}
}
