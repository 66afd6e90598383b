package writer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"docqa-engine/pkg/llm"
	"docqa-engine/pkg/qa/evidence"
)

// DefaultTopN bounds how many evidence items reach the prompt.
const DefaultTopN = 3

const excerptLimit = 200

// ConservativeAnswer is the fixed response for an empty evidence pack and
// the terminal rung of the fallback ladder.
const ConservativeAnswer = "I could not find enough supporting material to answer this reliably. " +
	"Try rephrasing the question or narrowing it to a specific document."

// Citation points at an evidence item actually used in the answer.
type Citation struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Draft is the writer's output, pre-verification.
type Draft struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Degraded   bool       `json:"degraded"`
}

// Writer turns an evidence pack into an answer draft. The completion
// provider is treated as unreliable: any provider failure degrades to a
// plain evidence digest rather than erroring out.
type Writer struct {
	provider llm.CompletionProvider
	topN     int
}

func New(provider llm.CompletionProvider, topN int) *Writer {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Writer{
		provider: provider,
		topN:     topN,
	}
}

// Write produces a draft. Citations only ever reference the evidence that
// was actually placed into the prompt.
func (w *Writer) Write(ctx context.Context, query string, pack *evidence.Pack, grounded bool) *Draft {
	if !grounded {
		return w.writeDirect(ctx, query)
	}

	items := pack.Top(w.topN)
	if len(items) == 0 {
		return &Draft{
			Answer:     ConservativeAnswer,
			Confidence: 0,
			Degraded:   true,
		}
	}

	evidenceText := buildEvidenceText(items)
	citations := buildCitations(items)

	prompt := fmt.Sprintf(
		"Answer the question using only the evidence below. Be concise and factual.\n\n%s\n\nQuestion: %s",
		evidenceText, query,
	)

	answer, err := w.generate(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		// provider down: fall back to a raw evidence digest
		return &Draft{
			Answer:     "Based on the retrieved evidence:\n" + clip(evidenceText, 300),
			Citations:  citations,
			Confidence: 0.6,
			Degraded:   true,
		}
	}

	return &Draft{
		Answer:     strings.TrimSpace(answer),
		Citations:  citations,
		Confidence: 0.8,
	}
}

func (w *Writer) writeDirect(ctx context.Context, query string) *Draft {
	prompt := fmt.Sprintf("Reply briefly and helpfully to the user message: %s", query)
	answer, err := w.generate(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		return &Draft{
			Answer:     "Hello! Ask me a question about your documents and I will look it up.",
			Confidence: 0.5,
			Degraded:   true,
		}
	}
	return &Draft{
		Answer:     strings.TrimSpace(answer),
		Confidence: 0.7,
	}
}

func (w *Writer) generate(ctx context.Context, prompt string) (string, error) {
	if w.provider == nil {
		return "", fmt.Errorf("no completion provider")
	}
	return w.provider.Generate(ctx, prompt)
}

func buildEvidenceText(items []evidence.Item) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Evidence %d: %s", i+1, clip(item.Text, excerptLimit))
	}
	return b.String()
}

func buildCitations(items []evidence.Item) []Citation {
	citations := make([]Citation, len(items))
	for i, item := range items {
		citations[i] = Citation{
			ChunkID: item.ID,
			Text:    clip(item.Text, excerptLimit),
			Score:   float64(item.Score),
		}
	}
	return citations
}

// clip truncates at a rune boundary so excerpts stay valid UTF-8.
func clip(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
