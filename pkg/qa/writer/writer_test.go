package writer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"docqa-engine/pkg/llm"
	"docqa-engine/pkg/qa/evidence"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.reply, s.err
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.reply, s.err
}

func packWith(items ...evidence.Item) *evidence.Pack {
	p := evidence.NewPack()
	p.Add(items...)
	return p
}

func TestWriteGroundedHappyPath(t *testing.T) {
	w := New(&stubProvider{reply: "  The paper used HotpotQA.  "}, DefaultTopN)
	pack := packWith(
		evidence.Item{ID: "c1", Source: "paper-001", Text: "evaluated on HotpotQA", Score: 0.9},
		evidence.Item{ID: "c2", Source: "paper-001", Text: "method b used dense embeddings", Score: 0.7},
	)

	draft := w.Write(context.Background(), "What dataset did the paper use?", pack, true)

	if draft.Answer != "The paper used HotpotQA." {
		t.Errorf("Answer = %q, want trimmed provider reply", draft.Answer)
	}
	if draft.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", draft.Confidence)
	}
	if draft.Degraded {
		t.Error("happy path must not be degraded")
	}
	if len(draft.Citations) != 2 {
		t.Fatalf("citation count = %d, want 2", len(draft.Citations))
	}
	if draft.Citations[0].ChunkID != "c1" {
		t.Errorf("citations should follow score order, got %s first", draft.Citations[0].ChunkID)
	}
}

func TestWriteGroundedEmptyPack(t *testing.T) {
	w := New(&stubProvider{reply: "should never be used"}, DefaultTopN)

	draft := w.Write(context.Background(), "anything", evidence.NewPack(), true)

	if draft.Answer != ConservativeAnswer {
		t.Errorf("Answer = %q, want conservative answer", draft.Answer)
	}
	if draft.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", draft.Confidence)
	}
	if !draft.Degraded {
		t.Error("empty pack must degrade")
	}
	if len(draft.Citations) != 0 {
		t.Errorf("no evidence means no citations, got %d", len(draft.Citations))
	}
}

func TestWriteGroundedProviderFailure(t *testing.T) {
	w := New(&stubProvider{err: errors.New("model down")}, DefaultTopN)
	pack := packWith(evidence.Item{ID: "c1", Source: "doc", Text: "the key passage", Score: 0.5})

	draft := w.Write(context.Background(), "q", pack, true)

	if !strings.HasPrefix(draft.Answer, "Based on the retrieved evidence:") {
		t.Errorf("Answer = %q, want evidence digest", draft.Answer)
	}
	if draft.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", draft.Confidence)
	}
	if !draft.Degraded {
		t.Error("provider failure must degrade")
	}
	if len(draft.Citations) != 1 {
		t.Errorf("digest still cites its evidence, got %d citations", len(draft.Citations))
	}
}

func TestWriteGroundedBlankReplyDegrades(t *testing.T) {
	w := New(&stubProvider{reply: "   "}, DefaultTopN)
	pack := packWith(evidence.Item{ID: "c1", Source: "doc", Text: "passage", Score: 0.5})

	draft := w.Write(context.Background(), "q", pack, true)

	if !draft.Degraded || draft.Confidence != 0.6 {
		t.Errorf("blank reply should take the digest path, got %+v", draft)
	}
}

func TestWriteDirect(t *testing.T) {
	t.Run("provider ok", func(t *testing.T) {
		w := New(&stubProvider{reply: "Hi! How can I help?"}, DefaultTopN)
		draft := w.Write(context.Background(), "hello", evidence.NewPack(), false)

		if draft.Confidence != 0.7 || draft.Degraded {
			t.Errorf("direct reply: %+v", draft)
		}
		if len(draft.Citations) != 0 {
			t.Error("ungrounded answers carry no citations")
		}
	})

	t.Run("provider down", func(t *testing.T) {
		w := New(&stubProvider{err: errors.New("down")}, DefaultTopN)
		draft := w.Write(context.Background(), "hello", evidence.NewPack(), false)

		if draft.Answer == "" || draft.Confidence != 0.5 || !draft.Degraded {
			t.Errorf("fallback greeting: %+v", draft)
		}
	})

	t.Run("no provider wired", func(t *testing.T) {
		w := New(nil, DefaultTopN)
		draft := w.Write(context.Background(), "hello", evidence.NewPack(), false)

		if !draft.Degraded {
			t.Error("missing provider must degrade")
		}
	})
}

func TestWriteCitationsBoundedByTopN(t *testing.T) {
	w := New(&stubProvider{reply: "answer"}, 2)
	pack := packWith(
		evidence.Item{ID: "c1", Text: "a", Score: 0.9},
		evidence.Item{ID: "c2", Text: "b", Score: 0.8},
		evidence.Item{ID: "c3", Text: "c", Score: 0.7},
	)

	draft := w.Write(context.Background(), "q", pack, true)

	if len(draft.Citations) != 2 {
		t.Fatalf("citation count = %d, want topN", len(draft.Citations))
	}
	for _, c := range draft.Citations {
		if c.ChunkID == "c3" {
			t.Error("lowest scored item should not be cited")
		}
	}
}

func TestWriteClipsLongExcerpts(t *testing.T) {
	long := strings.Repeat("x", 500)
	w := New(&stubProvider{reply: "answer"}, DefaultTopN)
	pack := packWith(evidence.Item{ID: "c1", Text: long, Score: 0.9})

	draft := w.Write(context.Background(), "q", pack, true)

	if len(draft.Citations[0].Text) != excerptLimit {
		t.Errorf("excerpt length = %d, want %d", len(draft.Citations[0].Text), excerptLimit)
	}
}

func TestWriteClipsExcerptOnRuneBoundary(t *testing.T) {
	// two-byte runes straddle the excerpt limit
	long := "a" + strings.Repeat("б", 150)
	w := New(&stubProvider{reply: "answer"}, DefaultTopN)
	pack := packWith(evidence.Item{ID: "c1", Text: long, Score: 0.9})

	draft := w.Write(context.Background(), "q", pack, true)

	excerpt := draft.Citations[0].Text
	if !utf8.ValidString(excerpt) {
		t.Errorf("excerpt is not valid UTF-8 (len=%d)", len(excerpt))
	}
	if len(excerpt) > excerptLimit {
		t.Errorf("excerpt length = %d, want <= %d", len(excerpt), excerptLimit)
	}
}
