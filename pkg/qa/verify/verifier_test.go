package verify

import (
	"testing"

	"docqa-engine/pkg/qa/evidence"
	"docqa-engine/pkg/qa/writer"
)

func packWith(ids ...string) *evidence.Pack {
	p := evidence.NewPack()
	for _, id := range ids {
		p.Add(evidence.Item{ID: id, Text: "passage " + id, Score: 0.5})
	}
	return p
}

func TestVerifyCleanPass(t *testing.T) {
	v := New()
	draft := &writer.Draft{
		Answer:    "The paper used HotpotQA.",
		Citations: []writer.Citation{{ChunkID: "c1", Text: "evaluated on HotpotQA"}},
	}

	out := v.Verify(draft, packWith("c1", "c2"), true)

	if !out.Passed {
		t.Fatalf("Passed = false, reasons: %v", out.Reasons)
	}
	if out.Severity != SeverityNone || out.Degraded {
		t.Errorf("clean pass should carry no severity, got %+v", out)
	}
	if len(out.Citations) != 1 {
		t.Errorf("citation count = %d, want 1", len(out.Citations))
	}
}

func TestVerifyEmptyAnswerRejected(t *testing.T) {
	v := New()
	draft := &writer.Draft{Answer: "   "}

	out := v.Verify(draft, packWith("c1"), true)

	if out.Passed {
		t.Fatal("empty answer must be rejected")
	}
	if out.Severity != SeverityMajor {
		t.Errorf("Severity = %s, want major", out.Severity)
	}
	if out.Answer != writer.ConservativeAnswer {
		t.Errorf("rejected drafts are replaced, got %q", out.Answer)
	}
}

func TestVerifyGroundedWithoutCitationsRejected(t *testing.T) {
	v := New()
	draft := &writer.Draft{Answer: "An answer with no supporting evidence."}

	out := v.Verify(draft, packWith("c1"), true)

	if out.Passed {
		t.Fatal("grounded answer without citations must be rejected")
	}
	if out.Answer != writer.ConservativeAnswer || out.Severity != SeverityMajor || !out.Degraded {
		t.Errorf("reject outcome: %+v", out)
	}
}

func TestVerifyAllCitationsOrphanedRejected(t *testing.T) {
	v := New()
	draft := &writer.Draft{
		Answer:    "Answer citing evidence that was never retrieved.",
		Citations: []writer.Citation{{ChunkID: "ghost-1"}, {ChunkID: "ghost-2"}},
	}

	out := v.Verify(draft, packWith("c1"), true)

	if out.Passed {
		t.Fatal("all-orphan citations must be rejected on a grounded route")
	}
	if len(out.Reasons) == 0 {
		t.Error("reject must explain itself")
	}
}

func TestVerifyOrphanCitationDropped(t *testing.T) {
	v := New()
	draft := &writer.Draft{
		Answer: "Answer with one good and one stale citation.",
		Citations: []writer.Citation{
			{ChunkID: "c1"},
			{ChunkID: "ghost"},
		},
	}

	out := v.Verify(draft, packWith("c1"), true)

	if !out.Passed {
		t.Fatalf("one valid citation should pass, reasons: %v", out.Reasons)
	}
	if out.Severity != SeverityMinor || !out.Degraded {
		t.Errorf("orphan drop is a minor repair, got %+v", out)
	}
	if len(out.Citations) != 1 || out.Citations[0].ChunkID != "c1" {
		t.Errorf("orphan must be dropped, kept %+v", out.Citations)
	}
	if out.Answer != draft.Answer {
		t.Error("the answer itself survives an orphan drop")
	}
}

func TestVerifyUngroundedNeedsNoCitations(t *testing.T) {
	v := New()
	draft := &writer.Draft{Answer: "Hello! Ask me about your documents."}

	out := v.Verify(draft, evidence.NewPack(), false)

	if !out.Passed || out.Severity != SeverityNone {
		t.Errorf("ungrounded pass: %+v", out)
	}
}
