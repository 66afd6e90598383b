package kernel

import (
	"testing"

	"docqa-engine/internal/entity"

	"github.com/google/uuid"
)

func turn(query, summary, answer string) *entity.Turn {
	return &entity.Turn{
		Id:      uuid.New(),
		Query:   query,
		Summary: summary,
		Answer:  answer,
	}
}

func TestSelectContextOverlapBeatsRecency(t *testing.T) {
	ix := NewIndexer()

	// newest first, but the older turn matches the query
	turns := []*entity.Turn{
		turn("weather talk", "Q: weather | A: sunny", "sunny"),
		turn("caching strategy", "Q: caching strategy | A: use LRU eviction", "use LRU eviction"),
	}

	blocks := ix.SelectContext("caching eviction policy", turns, DefaultContextLimit)
	if len(blocks) != 2 {
		t.Fatalf("block count = %d, want 2", len(blocks))
	}
	if blocks[0].TurnID != turns[1].Id.String() {
		t.Errorf("matching turn should rank first despite being older")
	}
	if blocks[0].Score <= blocks[1].Score {
		t.Errorf("scores not ordered: %v then %v", blocks[0].Score, blocks[1].Score)
	}
}

func TestSelectContextLimit(t *testing.T) {
	ix := NewIndexer()

	var turns []*entity.Turn
	for i := 0; i < 12; i++ {
		turns = append(turns, turn("question", "Q: question | A: answer", "answer"))
	}

	blocks := ix.SelectContext("question", turns, 3)
	if len(blocks) != 3 {
		t.Errorf("block count = %d, want limit 3", len(blocks))
	}
}

func TestSelectContextEmpty(t *testing.T) {
	ix := NewIndexer()
	if blocks := ix.SelectContext("anything", nil, DefaultContextLimit); blocks != nil {
		t.Errorf("no turns should yield no blocks, got %v", blocks)
	}
}

func TestSelectContextFallsBackToQuerySummary(t *testing.T) {
	ix := NewIndexer()

	turns := []*entity.Turn{turn("what is caching", "", "an optimization")}
	blocks := ix.SelectContext("caching", turns, DefaultContextLimit)
	if len(blocks) != 1 {
		t.Fatal("expected one block")
	}
	if blocks[0].Summary != "what is caching" {
		t.Errorf("empty summary should fall back to the query, got %q", blocks[0].Summary)
	}
}

func TestTruncateByBudget(t *testing.T) {
	blocks := []ContextBlock{
		{TurnID: "a", Summary: "0123456789"},
		{TurnID: "b", Summary: "0123456789"},
		{TurnID: "c", Summary: "0123456789"},
	}

	t.Run("keeps prefix within budget", func(t *testing.T) {
		kept := TruncateByBudget(blocks, 25)
		if len(kept) != 2 {
			t.Fatalf("kept %d blocks, want 2", len(kept))
		}
		if kept[0].TurnID != "a" || kept[1].TurnID != "b" {
			t.Errorf("kept wrong blocks: %v", kept)
		}
	})

	t.Run("zero budget keeps everything", func(t *testing.T) {
		if kept := TruncateByBudget(blocks, 0); len(kept) != 3 {
			t.Errorf("kept %d blocks, want all", len(kept))
		}
	})

	t.Run("budget smaller than first block", func(t *testing.T) {
		if kept := TruncateByBudget(blocks, 5); len(kept) != 0 {
			t.Errorf("kept %d blocks, want none", len(kept))
		}
	})
}
