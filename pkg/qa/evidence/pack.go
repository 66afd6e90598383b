package evidence

import (
	"sort"
	"sync"
)

// Item is a single retrieved passage offered to the writer.
type Item struct {
	ID     string  `json:"id"`
	Source string  `json:"source"` // doc or turn the snippet came from
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
}

// Pack accumulates the deduplicated evidence produced by executed
// retrieval/reasoning nodes for one request. Safe for concurrent use:
// parallel plan nodes add into the same pack.
type Pack struct {
	mu    sync.RWMutex
	items []Item
	seen  map[string]bool
}

func NewPack() *Pack {
	return &Pack{
		seen: make(map[string]bool),
	}
}

// Add inserts items, skipping duplicates by id. Items with an empty id
// or empty text are dropped.
func (p *Pack) Add(items ...Item) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, item := range items {
		if item.ID == "" || item.Text == "" {
			continue
		}
		if p.seen[item.ID] {
			continue
		}
		p.seen[item.ID] = true
		p.items = append(p.items, item)
	}
}

// Contains reports whether an evidence id exists in the pack.
func (p *Pack) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seen[id]
}

// Items returns a copy of the accumulated evidence.
func (p *Pack) Items() []Item {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Item, len(p.items))
	copy(out, p.items)
	return out
}

// Top returns up to n items ordered by descending score.
func (p *Pack) Top(n int) []Item {
	items := p.Items()
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// Len returns the number of deduplicated items.
func (p *Pack) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}
