package router

import (
	"context"
	"strings"
	"time"

	"docqa-engine/pkg/qa/kernel"
	"docqa-engine/pkg/retrieval"
)

var greetingTokens = map[string]struct{}{
	"hello": {}, "hi": {}, "hey": {}, "thanks": {}, "thank": {}, "goodbye": {}, "bye": {},
}

var multiPartTokens = []string{"compare", "versus", " vs ", "difference between", "respectively", "both", "as well as", "and explain", "and why", "and how"}

var vagueQueries = map[string]struct{}{
	"it": {}, "this": {}, "that": {}, "what": {}, "how": {}, "why": {}, "them": {},
}

const probeTimeout = 2 * time.Second

// Router scores a query and applies the threshold policy to pick a route
// and execution mode. It holds no per-request state and never persists
// anything.
type Router struct {
	retriever retrieval.Retriever
	policy    Policy
}

func New(retriever retrieval.Retriever, policy Policy) *Router {
	return &Router{
		retriever: retriever,
		policy:    policy,
	}
}

func (r *Router) Policy() Policy {
	return r.policy
}

// Score computes the four routing signals. The retrieval probe is the only
// external call; its error never propagates, it just flags ProbeFailed.
func (r *Router) Score(ctx context.Context, query string, contextBlocks []kernel.ContextBlock, docScope []string) Scores {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(queryLower)

	scores := Scores{
		Complexity:           r.complexity(queryLower, words),
		Ambiguity:            r.ambiguity(queryLower, words, len(contextBlocks) > 0),
		Risk:                 r.risk(queryLower),
		RetrievalSufficiency: 0.5,
	}

	if r.retriever != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := r.retriever.Probe(probeCtx, docScope); err != nil {
			scores.ProbeFailed = true
			scores.RetrievalSufficiency = 0
		} else {
			scores.RetrievalSufficiency = 0.7
			if len(docScope) > 0 {
				scores.RetrievalSufficiency = 0.9
			}
		}
	}

	return scores
}

// Decide applies the threshold table. Order matters: risk gates first,
// then ambiguity, then probe degradation, then complexity tiers.
func (r *Router) Decide(scores Scores, docScoped bool) Decision {
	p := r.policy

	switch {
	case scores.Risk >= p.BlockRisk:
		return decision(RouteBlock, ModeBlock, 0.95, "risk threshold exceeded", scores)

	case scores.Ambiguity >= p.ClarifyAmbiguity && !docScoped:
		return decision(RouteClarify, ModeClarify, 0.45, "query too ambiguous to ground", scores)

	case scores.ProbeFailed:
		// conservative grounding when the probe cannot vouch for retrieval
		return decision(RouteDocGrounded, ModeMultiRetrieve, 0.5, "retrieval probe failed", scores)

	case docScoped:
		if scores.Complexity >= p.MultiHopComplexity && scores.RetrievalSufficiency >= p.MinSufficiency {
			return decision(RouteMultiHop, ModeMultiHop, 0.78, "scoped multi-part query", scores)
		}
		if scores.Complexity >= p.MultiRetrieveComplexity {
			return decision(RouteDocGrounded, ModeMultiRetrieve, 0.72, "scoped compound query", scores)
		}
		return decision(RouteDocGrounded, ModeSingleHop, 0.85, "document scope given", scores)

	case scores.Complexity <= p.FastPathComplexity && scores.Ambiguity < p.ClarifyAmbiguity:
		return decision(RouteFastPath, ModeDirect, 0.9, "smalltalk or trivial query", scores)

	case scores.Complexity >= p.MultiHopComplexity && scores.RetrievalSufficiency >= p.MinSufficiency:
		return decision(RouteMultiHop, ModeMultiHop, 0.78, "multi-part query", scores)

	case scores.Complexity >= p.MultiRetrieveComplexity:
		return decision(RouteDocGrounded, ModeMultiRetrieve, 0.72, "compound query", scores)

	default:
		return decision(RouteDocGrounded, ModeSingleHop, 0.72, "default grounded route", scores)
	}
}

func decision(route Route, mode Mode, confidence float64, reasoning string, scores Scores) Decision {
	return Decision{
		Route:      route,
		Mode:       mode,
		Confidence: confidence,
		Reasoning:  reasoning,
		Scores:     scores,
	}
}

func (r *Router) complexity(queryLower string, words []string) float64 {
	score := 0.0

	for _, token := range multiPartTokens {
		if strings.Contains(queryLower, token) {
			score += 0.35
		}
	}

	segments := kernel.SplitSegments(queryLower)
	if len(segments) > 1 {
		score += 0.3
	}

	switch {
	case len(words) > 24:
		score += 0.3
	case len(words) > 12:
		score += 0.15
	}

	if len(words) > 0 && len(words) <= 4 {
		first := strings.Trim(words[0], ",.!?")
		if _, greeting := greetingTokens[first]; greeting {
			return 0.05
		}
	}

	return clamp(score)
}

func (r *Router) ambiguity(queryLower string, words []string, hasContext bool) float64 {
	score := 0.0

	if len(words) <= 1 {
		score += 0.5
	}
	if _, vague := vagueQueries[queryLower]; vague {
		score += 0.4
	}
	if len(queryLower) <= 2 {
		score += 0.3
	}
	if hasContext {
		// prior turns can resolve a pronoun-only follow-up
		score -= 0.3
	}

	return clamp(score)
}

func (r *Router) risk(queryLower string) float64 {
	for _, term := range r.policy.BlockTerms {
		if strings.Contains(queryLower, strings.ToLower(term)) {
			return 1.0
		}
	}
	return 0.0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
