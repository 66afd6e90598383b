package plan

import (
	"errors"
	"fmt"
)

// ErrPlanInvalid marks a plan that must not be executed. The facade reacts
// by downgrading the execution mode, never by running the plan anyway.
var ErrPlanInvalid = errors.New("plan invalid")

// Validate rejects plans that are not well-formed DAGs within budget.
func Validate(p *ExecutionPlan) error {
	if p == nil || len(p.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrPlanInvalid)
	}
	if p.Budget.MaxNodes > 0 && len(p.Nodes) > p.Budget.MaxNodes {
		return fmt.Errorf("%w: %d nodes over budget %d", ErrPlanInvalid, len(p.Nodes), p.Budget.MaxNodes)
	}

	ids := make(map[string]struct{}, len(p.Nodes))
	for _, node := range p.Nodes {
		if node.ID == "" {
			return fmt.Errorf("%w: empty node id", ErrPlanInvalid)
		}
		if _, dup := ids[node.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrPlanInvalid, node.ID)
		}
		ids[node.ID] = struct{}{}
	}

	for _, node := range p.Nodes {
		for _, dep := range node.DependsOn {
			if dep == node.ID {
				return fmt.Errorf("%w: node %q depends on itself", ErrPlanInvalid, node.ID)
			}
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("%w: node %q depends on unknown node %q", ErrPlanInvalid, node.ID, dep)
			}
		}
	}

	batches, err := TopologicalBatches(p)
	if err != nil {
		return err
	}
	if p.Budget.MaxDepth > 0 && len(batches) > p.Budget.MaxDepth {
		return fmt.Errorf("%w: depth %d over budget %d", ErrPlanInvalid, len(batches), p.Budget.MaxDepth)
	}
	return nil
}

// TopologicalBatches groups nodes into dependency levels (Kahn's
// algorithm): every node in batch i depends only on nodes in batches < i.
// A cycle yields ErrPlanInvalid.
func TopologicalBatches(p *ExecutionPlan) ([][]PlanNode, error) {
	indegree := make(map[string]int, len(p.Nodes))
	dependents := make(map[string][]string, len(p.Nodes))
	byID := make(map[string]PlanNode, len(p.Nodes))

	for _, node := range p.Nodes {
		byID[node.ID] = node
		indegree[node.ID] = len(node.DependsOn)
		for _, dep := range node.DependsOn {
			dependents[dep] = append(dependents[dep], node.ID)
		}
	}

	var batches [][]PlanNode
	processed := 0

	// keep declaration order within a batch for deterministic output
	for processed < len(p.Nodes) {
		var batch []PlanNode
		for _, node := range p.Nodes {
			if indegree[node.ID] == 0 {
				batch = append(batch, node)
			}
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("%w: dependency cycle", ErrPlanInvalid)
		}
		for _, node := range batch {
			indegree[node.ID] = -1 // consumed
			for _, next := range dependents[node.ID] {
				indegree[next]--
			}
			processed++
		}
		batches = append(batches, batch)
	}

	return batches, nil
}
