package verify

import (
	"strings"

	"docqa-engine/pkg/qa/evidence"
	"docqa-engine/pkg/qa/writer"
)

// Severity of a verification failure.
const (
	SeverityNone  = "none"
	SeverityMinor = "minor"
	SeverityMajor = "major"
)

// Outcome is the verifier's verdict together with the possibly repaired
// draft. The verifier fails closed: a draft it cannot repair is replaced
// with the conservative answer, never returned as-is.
type Outcome struct {
	Answer    string            `json:"answer"`
	Citations []writer.Citation `json:"citations"`
	Passed    bool              `json:"passed"`
	Severity  string            `json:"severity"`
	Reasons   []string          `json:"reasons,omitempty"`
	Degraded  bool              `json:"degraded"`
}

// Verifier applies rule checks, not model judgment: grounded answers need
// at least one citation, every citation must resolve into the evidence
// pack, and the answer must be non-empty.
type Verifier struct{}

func New() *Verifier {
	return &Verifier{}
}

func (v *Verifier) Verify(draft *writer.Draft, pack *evidence.Pack, grounded bool) Outcome {
	var reasons []string

	answer := strings.TrimSpace(draft.Answer)
	if answer == "" {
		return v.reject(append(reasons, "empty answer"))
	}

	valid, orphans := splitCitations(draft.Citations, pack)
	for _, orphan := range orphans {
		reasons = append(reasons, "citation "+orphan.ChunkID+" not found in evidence pack")
	}

	if grounded && len(valid) == 0 {
		if len(draft.Citations) > 0 {
			reasons = append(reasons, "all citations orphaned")
		} else {
			reasons = append(reasons, "missing citation on grounded route")
		}
		return v.reject(reasons)
	}

	if len(orphans) > 0 {
		// minor failure: drop the orphans, keep the answer (one bounded repair)
		return Outcome{
			Answer:    answer,
			Citations: valid,
			Passed:    true,
			Severity:  SeverityMinor,
			Reasons:   reasons,
			Degraded:  true,
		}
	}

	return Outcome{
		Answer:    answer,
		Citations: valid,
		Passed:    true,
		Severity:  SeverityNone,
	}
}

func (v *Verifier) reject(reasons []string) Outcome {
	return Outcome{
		Answer:   writer.ConservativeAnswer,
		Passed:   false,
		Severity: SeverityMajor,
		Reasons:  reasons,
		Degraded: true,
	}
}

func splitCitations(citations []writer.Citation, pack *evidence.Pack) (valid, orphans []writer.Citation) {
	for _, c := range citations {
		if pack != nil && pack.Contains(c.ChunkID) {
			valid = append(valid, c)
		} else {
			orphans = append(orphans, c)
		}
	}
	return valid, orphans
}
