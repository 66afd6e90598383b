package kernel

import (
	"regexp"
	"strings"
)

// Queries shorter than this are never split.
const minSplitLength = 28

var (
	punctuationSplit = regexp.MustCompile(`[;.?!]\s*`)
	conjunctionSplit = regexp.MustCompile(`\s+(?:and also|as well as|and then)\s+|,\s+and\s+`)
	dedupKeyPattern  = regexp.MustCompile(`\W+`)
)

// SplitSegments breaks a multi-part query into sub-problems. The split is
// deterministic: punctuation first, then multi-clause conjunctions, then
// order-preserving dedup. A query that does not split returns itself.
func SplitSegments(query string) []string {
	normalized := strings.TrimSpace(query)
	if len(normalized) <= minSplitLength {
		return []string{normalized}
	}

	marked := punctuationSplit.ReplaceAllString(normalized, "|SPLIT|")
	marked = conjunctionSplit.ReplaceAllString(marked, "|SPLIT|")

	parts := strings.Split(marked, "|SPLIT|")
	var segments []string
	seen := make(map[string]struct{})
	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		key := strings.ToLower(dedupKeyPattern.ReplaceAllString(p, ""))
		if len(key) > 100 {
			key = key[:100]
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		segments = append(segments, p)
	}

	if len(segments) == 0 {
		return []string{query}
	}
	return segments
}
