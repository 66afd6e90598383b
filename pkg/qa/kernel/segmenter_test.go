package kernel

import (
	"strings"
	"testing"
)

func TestSplitSegments(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "short query never splits",
			query: "what is caching",
			want:  []string{"what is caching"},
		},
		{
			name:  "leading and trailing whitespace trimmed",
			query: "  what is caching  ",
			want:  []string{"what is caching"},
		},
		{
			name:  "punctuation splits clauses",
			query: "Compare A and B. Explain why B failed.",
			want:  []string{"Compare A and B", "Explain why B failed"},
		},
		{
			name:  "multi-clause conjunction splits",
			query: "summarize the introduction and then list the key results",
			want:  []string{"summarize the introduction", "list the key results"},
		},
		{
			name:  "comma-and splits",
			query: "describe method a, and describe method b",
			want:  []string{"describe method a", "describe method b"},
		},
		{
			name:  "plain and does not split",
			query: "compare the precision and the recall of the baseline",
			want:  []string{"compare the precision and the recall of the baseline"},
		},
		{
			name:  "duplicate clauses deduplicated",
			query: "repeat this exact point. Repeat this exact point.",
			want:  []string{"repeat this exact point"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSegments(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitSegments(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("segment[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitSegmentsDegenerateInput(t *testing.T) {
	query := strings.Repeat("? ", 20)
	got := SplitSegments(query)
	if len(got) != 1 {
		t.Fatalf("degenerate input should fall back to the raw query, got %v", got)
	}
}
