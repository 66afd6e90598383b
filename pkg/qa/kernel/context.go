package kernel

// ContextBlock is a ranked excerpt of a prior turn offered to the router
// and to answer prompts. Priority drives budget-aware truncation: lower
// priority blocks are dropped first when the context budget is tight.
type ContextBlock struct {
	TurnID   string   `json:"turn_id"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags,omitempty"`
	Score    float64  `json:"score"`
	Priority int      `json:"priority"`
}

// TruncateByBudget keeps the highest priority blocks whose summaries fit
// within maxChars. Blocks are assumed already sorted by rank.
func TruncateByBudget(blocks []ContextBlock, maxChars int) []ContextBlock {
	if maxChars <= 0 {
		return blocks
	}
	used := 0
	var kept []ContextBlock
	for _, b := range blocks {
		if used+len(b.Summary) > maxChars {
			break
		}
		used += len(b.Summary)
		kept = append(kept, b)
	}
	return kept
}
