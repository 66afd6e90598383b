package plan

import (
	"time"

	"docqa-engine/pkg/qa/router"
)

// Node capabilities. The executor binds a handler per capability.
const (
	TypeRewrite  = "query.rewrite"
	TypeRetrieve = "context.retrieve"
	TypeMerge    = "evidence.merge"
	TypeReason   = "reasoning.synthesize"
	TypeWrite    = "answer.write"
	TypeVerify   = "answer.verify"
)

// NodeBudget caps one node's runtime cost.
type NodeBudget struct {
	TimeoutMs       int `json:"timeout_ms"`
	MaxContextChars int `json:"max_context_chars"`
}

// RetryPolicy caps how often a failing node is re-dispatched.
type RetryPolicy struct {
	MaxAttempts int `json:"max_attempts"`
	BackoffMs   int `json:"backoff_ms"`
}

// PlanNode is one typed step of an execution plan.
type PlanNode struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Question  string      `json:"question,omitempty"`
	DependsOn []string    `json:"depends_on,omitempty"`
	Budget    NodeBudget  `json:"budget"`
	Retry     RetryPolicy `json:"retry"`
}

// Budget is the plan-level resource ceiling.
type Budget struct {
	MaxNodes    int           `json:"max_nodes"`
	MaxDepth    int           `json:"max_depth"`
	MaxParallel int           `json:"max_parallel"`
	Timeout     time.Duration `json:"timeout"`
}

func DefaultBudget() Budget {
	return Budget{
		MaxNodes:    12,
		MaxDepth:    6,
		MaxParallel: 3,
		Timeout:     30 * time.Second,
	}
}

// ExecutionPlan is a validated dependency graph compiled from a route and
// execution mode.
type ExecutionPlan struct {
	ID     string       `json:"id"`
	Route  router.Route `json:"route"`
	Mode   router.Mode  `json:"mode"`
	Query  string       `json:"query"`
	Nodes  []PlanNode   `json:"nodes"`
	Budget Budget       `json:"budget"`
}

// Node returns the node with the given id, or nil.
func (p *ExecutionPlan) Node(id string) *PlanNode {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

// NodeIDs lists node ids in declaration order.
func (p *ExecutionPlan) NodeIDs() []string {
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}
