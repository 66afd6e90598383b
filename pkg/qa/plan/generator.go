package plan

import (
	"fmt"

	"docqa-engine/pkg/qa/router"

	"github.com/google/uuid"
)

const (
	defaultNodeTimeoutMs   = 8000
	defaultMaxContextChars = 6000
	defaultMaxAttempts     = 2
	defaultBackoffMs       = 250
)

// Generator compiles (route, mode) into a fixed node-template family.
// Free-form plans are never produced; every template passes Validate by
// construction, which Generate still enforces before returning.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate builds a plan for the query. subProblems feed the fan-out of
// the multi-retrieve template; other templates ignore them.
func (g *Generator) Generate(route router.Route, mode router.Mode, query string, subProblems []string, budget Budget) (*ExecutionPlan, error) {
	if budget.MaxNodes == 0 {
		budget = DefaultBudget()
	}

	p := &ExecutionPlan{
		ID:     uuid.NewString(),
		Route:  route,
		Mode:   mode,
		Query:  query,
		Budget: budget,
	}

	switch mode {
	case router.ModeDirect:
		p.Nodes = g.directNodes(query)
	case router.ModeSingleHop:
		p.Nodes = g.singleHopNodes(query)
	case router.ModeMultiRetrieve:
		p.Nodes = g.multiRetrieveNodes(query, subProblems, budget)
	case router.ModeMultiHop:
		p.Nodes = g.multiHopNodes(query, subProblems)
	default:
		return nil, fmt.Errorf("%w: no template for mode %s", ErrPlanInvalid, mode)
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (g *Generator) directNodes(query string) []PlanNode {
	return []PlanNode{
		node("write", TypeWrite, query),
		node("verify", TypeVerify, query, "write"),
	}
}

func (g *Generator) singleHopNodes(query string) []PlanNode {
	return []PlanNode{
		node("retrieve", TypeRetrieve, query),
		node("write", TypeWrite, query, "retrieve"),
		node("verify", TypeVerify, query, "write"),
	}
}

func (g *Generator) multiRetrieveNodes(query string, subProblems []string, budget Budget) []PlanNode {
	questions := subProblems
	if len(questions) == 0 {
		questions = []string{query}
	}
	// leave room for rewrite, merge, write, verify
	maxRetrieves := budget.MaxNodes - 4
	if maxRetrieves < 1 {
		maxRetrieves = 1
	}
	if len(questions) > maxRetrieves {
		questions = questions[:maxRetrieves]
	}

	nodes := []PlanNode{
		node("rewrite", TypeRewrite, query),
	}
	retrieveIDs := make([]string, 0, len(questions))
	for i, question := range questions {
		id := fmt.Sprintf("retrieve_%d", i+1)
		retrieveIDs = append(retrieveIDs, id)
		nodes = append(nodes, node(id, TypeRetrieve, question, "rewrite"))
	}
	nodes = append(nodes,
		node("merge", TypeMerge, query, retrieveIDs...),
		node("write", TypeWrite, query, "merge"),
		node("verify", TypeVerify, query, "write"),
	)
	return nodes
}

func (g *Generator) multiHopNodes(query string, subProblems []string) []PlanNode {
	primaryQuestion := query
	secondaryQuestion := query
	if len(subProblems) > 0 {
		primaryQuestion = subProblems[0]
	}
	if len(subProblems) > 1 {
		secondaryQuestion = subProblems[1]
	}

	return []PlanNode{
		node("retrieve_primary", TypeRetrieve, primaryQuestion),
		// the second hop keys off what the first one found
		node("retrieve_secondary", TypeRetrieve, secondaryQuestion, "retrieve_primary"),
		node("reason", TypeReason, query, "retrieve_primary", "retrieve_secondary"),
		node("write", TypeWrite, query, "reason"),
		node("verify", TypeVerify, query, "write"),
	}
}

func node(id, nodeType, question string, deps ...string) PlanNode {
	return PlanNode{
		ID:        id,
		Type:      nodeType,
		Question:  question,
		DependsOn: deps,
		Budget: NodeBudget{
			TimeoutMs:       defaultNodeTimeoutMs,
			MaxContextChars: defaultMaxContextChars,
		},
		Retry: RetryPolicy{
			MaxAttempts: defaultMaxAttempts,
			BackoffMs:   defaultBackoffMs,
		},
	}
}
