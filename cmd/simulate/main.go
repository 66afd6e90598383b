package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

var baseURL = envOr("SIMULATE_BASE_URL", "http://localhost:3000/api")

// Simplified DTOs for the script
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type queryResponse struct {
	TraceId       string  `json:"trace_id"`
	SessionId     string  `json:"session_id"`
	Answer        string  `json:"answer"`
	Route         string  `json:"route"`
	Mode          string  `json:"mode"`
	Status        string  `json:"status"`
	Confidence    float64 `json:"confidence"`
	FallbackUsed  bool    `json:"fallback_used"`
	LatencyMillis int64   `json:"latency_ms"`
	Clarification *struct {
		ThreadId string   `json:"thread_id"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
	} `json:"clarification"`
}

func main() {
	header := color.New(color.FgCyan, color.Bold)
	header.Println("=== DocQA Engine Simulation Client ===")

	ingestDoc("paper-001", "The study evaluated retrieval methods on the HotpotQA dataset. "+
		"Method A used sparse retrieval while Method B relied on dense embeddings. "+
		"Method B failed on rare entities because its encoder never saw them during training.")

	// Let the embedding consumer catch up
	time.Sleep(3 * time.Second)

	sessionID := ""

	scenarios := []struct {
		label string
		query string
		scope []string
	}{
		{"A: scoped factual", "What dataset did the paper use?", []string{"paper-001"}},
		{"B: ambiguous", "it", nil},
		{"C: multi-part", "Compare method A and method B and explain why B failed", []string{"paper-001"}},
		{"D: smalltalk", "hello there", nil},
	}

	for _, sc := range scenarios {
		color.Yellow("\n[%s] USER: %s", sc.label, sc.query)

		start := time.Now()
		res, err := sendQuery(sessionID, sc.query, sc.scope)
		elapsed := time.Since(start)
		if err != nil {
			color.Red("Error: %v", err)
			continue
		}
		sessionID = res.SessionId

		color.Green("ENGINE (%v) route=%s mode=%s conf=%.2f fallback=%v",
			elapsed, res.Route, res.Mode, res.Confidence, res.FallbackUsed)
		if res.Clarification != nil {
			color.Magenta("CLARIFY: %s", res.Clarification.Question)
			answer, err := answerClarification(res.Clarification.ThreadId, "I mean the evaluation dataset of paper-001")
			if err != nil {
				color.Red("Clarification error: %v", err)
				continue
			}
			color.Green("RESOLVED: %s", answer.Answer)
			continue
		}
		fmt.Println(res.Answer)
	}
}

func ingestDoc(docId, content string) {
	payload, _ := json.Marshal(map[string]string{"content": content})
	req, _ := http.NewRequest("PUT", fmt.Sprintf("%s/document/v1/%s/chunks", baseURL, docId), bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	defer resp.Body.Close()
	color.Blue("Ingested doc %s (status %d)", docId, resp.StatusCode)
}

func sendQuery(sessionID, query string, scope []string) (*queryResponse, error) {
	body := map[string]interface{}{"query": query}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	if len(scope) > 0 {
		body["doc_scope"] = scope
	}
	return post("/qa/v1/query", body)
}

func answerClarification(threadID, answer string) (*queryResponse, error) {
	return post("/qa/v1/clarification", map[string]string{
		"thread_id": threadID,
		"answer":    answer,
	})
}

func post(path string, body interface{}) (*queryResponse, error) {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", baseURL+path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token := os.Getenv("SIMULATE_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	var res queryResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
