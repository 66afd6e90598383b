package clarify

import (
	"context"
	"strings"
	"time"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/repository/contract"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
)

// DefaultTTL is how long an unanswered thread stays open.
const DefaultTTL = 15 * time.Minute

// DefaultQuestion is used when the router flags ambiguity without a more
// specific prompt.
const DefaultQuestion = "Your question is ambiguous. What exactly are you asking about, and in which document?"

var DefaultOptions = []string{
	"Name the subject you are asking about",
	"Describe the expected result",
	"Narrow down the document scope",
}

// Manager owns the clarification handshake: one open single-use thread
// per session, consumed or expired, never reused.
type Manager struct {
	threads contract.ClarificationRepository
	ttl     time.Duration
}

func NewManager(threads contract.ClarificationRepository, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		threads: threads,
		ttl:     ttl,
	}
}

// Open creates a thread for the session, first expiring any thread still
// open so the single-open-thread invariant holds.
func (m *Manager) Open(ctx context.Context, sessionId uuid.UUID, originalQuery, question string, options []string) (*entity.ClarificationThread, error) {
	if question == "" {
		question = DefaultQuestion
	}
	if len(options) == 0 {
		options = DefaultOptions
	}

	if existing, err := m.threads.FindOpenBySession(ctx, sessionId); err != nil {
		return nil, err
	} else if existing != nil {
		existing.Status = entity.ClarificationStatusExpired
		if err := m.threads.Update(ctx, existing); err != nil {
			return nil, err
		}
	}

	thread := &entity.ClarificationThread{
		Id:            uuid.New(),
		SessionId:     sessionId,
		OriginalQuery: originalQuery,
		Question:      question,
		Options:       options,
		Reason:        "query_scope",
		Status:        entity.ClarificationStatusOpen,
		CreatedAt:     time.Now(),
	}
	if err := m.threads.Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// Resolution is the outcome of answering a thread.
type Resolution struct {
	// MergedQuery is what gets resubmitted through the full pipeline.
	MergedQuery string
	// Fresh is true when the thread was gone or expired and the answer
	// has to stand on its own as a new query.
	Fresh bool
}

// Resolve consumes the thread: merges the follow-up answer with the
// original query and marks the thread resolved. An expired or missing
// thread yields a fresh query instead of an error.
func (m *Manager) Resolve(ctx context.Context, threadId uuid.UUID, answer string) (*Resolution, error) {
	thread, err := m.threads.FindOne(ctx, specification.ByID{ID: threadId})
	if err != nil {
		return nil, err
	}

	if thread == nil || thread.Status != entity.ClarificationStatusOpen || m.expired(thread) {
		if thread != nil && thread.Status == entity.ClarificationStatusOpen {
			thread.Status = entity.ClarificationStatusExpired
			_ = m.threads.Update(ctx, thread)
		}
		return &Resolution{MergedQuery: strings.TrimSpace(answer), Fresh: true}, nil
	}

	now := time.Now()
	thread.Status = entity.ClarificationStatusResolved
	thread.Answer = strings.TrimSpace(answer)
	thread.ResolvedAt = &now
	if err := m.threads.Update(ctx, thread); err != nil {
		return nil, err
	}

	return &Resolution{
		MergedQuery: Merge(thread.OriginalQuery, answer),
	}, nil
}

// Merge combines the original query with the clarification answer.
func Merge(originalQuery, answer string) string {
	return strings.TrimSpace(strings.TrimSpace(originalQuery) + "\nAdditional details: " + strings.TrimSpace(answer))
}

func (m *Manager) expired(thread *entity.ClarificationThread) bool {
	return time.Since(thread.CreatedAt) > m.ttl
}
