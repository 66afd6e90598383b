package kernel

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var entityTokenPattern = regexp.MustCompile(`[A-Za-z0-9_\-]{3,}`)

const (
	summaryPartLimit = 64
	maxEntities      = 12
	maxEntityTags    = 4
)

// Enricher derives the committed-turn metadata: a compact summary, token
// entities and topic tags. Heuristic on purpose, no model call involved.
type Enricher struct{}

func NewEnricher() *Enricher {
	return &Enricher{}
}

func (e *Enricher) BuildSummary(query, answer string) string {
	queryPart := clip(query, summaryPartLimit)
	answerPart := clip(answer, summaryPartLimit)
	if answerPart != "" {
		return "Q: " + queryPart + " | A: " + answerPart
	}
	return "Q: " + queryPart
}

func (e *Enricher) ExtractEntities(query, answer string) []string {
	text := query + " " + answer
	seen := make(map[string]struct{})
	for _, match := range entityTokenPattern.FindAllString(text, -1) {
		seen[match] = struct{}{}
	}

	entities := make([]string, 0, len(seen))
	for token := range seen {
		entities = append(entities, token)
	}
	sort.Strings(entities)
	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}
	return entities
}

func (e *Enricher) BuildTags(route string, entities []string, grounded bool, multiStep bool) []string {
	tags := []string{"qa-v1", strings.ToLower(route)}
	if grounded {
		tags = append(tags, "doc-grounded")
	}
	if multiStep {
		tags = append(tags, "multi-step")
	}
	for i, value := range entities {
		if i >= maxEntityTags {
			break
		}
		v := strings.ToLower(strings.TrimSpace(value))
		if v != "" {
			tags = append(tags, v)
		}
	}

	dedup := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag != "" {
			dedup[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(dedup))
	for tag := range dedup {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// clip truncates at a rune boundary so summaries stay valid UTF-8.
func clip(text string, limit int) string {
	clean := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if len(clean) <= limit {
		return clean
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(clean[cut]) {
		cut--
	}
	return clean[:cut]
}
