package kernel

import (
	"sort"
	"strings"

	"docqa-engine/internal/entity"
)

// Ranking weights: lexical overlap dominates, recency breaks ties between
// turns that mention the same terms.
const (
	overlapWeight = 0.65
	recencyWeight = 0.35
)

// DefaultContextLimit bounds how many prior turns are offered as context.
const DefaultContextLimit = 8

// Indexer ranks committed turns as candidate context for a new query.
type Indexer struct{}

func NewIndexer() *Indexer {
	return &Indexer{}
}

// SelectContext ranks turns (expected newest first) against the query and
// returns at most limit blocks, best first.
func (ix *Indexer) SelectContext(query string, turns []*entity.Turn, limit int) []ContextBlock {
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	queryTokens := tokens(query)
	total := len(turns)
	if total == 0 {
		return nil
	}

	blocks := make([]ContextBlock, 0, total)
	for index, turn := range turns {
		recency := 1.0 - float64(index)/float64(total)
		body := strings.Join([]string{turn.Query, turn.Summary, turn.Answer}, " ")
		overlap := overlapRatio(queryTokens, tokens(body))
		score := overlapWeight*overlap + recencyWeight*recency

		summary := turn.Summary
		if summary == "" {
			summary = turn.Query
		}

		blocks = append(blocks, ContextBlock{
			TurnID:   turn.Id.String(),
			Summary:  summary,
			Tags:     turn.Tags,
			Score:    score,
			Priority: index,
		})
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Score > blocks[j].Score
	})

	if len(blocks) > limit {
		blocks = blocks[:limit]
	}
	return blocks
}

func tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, field := range strings.Fields(text) {
		token := strings.ToLower(strings.TrimSpace(field))
		if token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}

func overlapRatio(query, body map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for token := range query {
		if _, ok := body[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
