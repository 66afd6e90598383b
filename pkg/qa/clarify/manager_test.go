package clarify

import (
	"context"
	"testing"
	"time"

	"docqa-engine/internal/entity"
	"docqa-engine/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeThreadRepository keeps threads in a map, enough to drive the
// manager without a database.
type fakeThreadRepository struct {
	threads map[uuid.UUID]*entity.ClarificationThread
}

func newFakeThreadRepository() *fakeThreadRepository {
	return &fakeThreadRepository{threads: make(map[uuid.UUID]*entity.ClarificationThread)}
}

func (f *fakeThreadRepository) Create(ctx context.Context, thread *entity.ClarificationThread) error {
	copied := *thread
	f.threads[thread.Id] = &copied
	return nil
}

func (f *fakeThreadRepository) Update(ctx context.Context, thread *entity.ClarificationThread) error {
	copied := *thread
	f.threads[thread.Id] = &copied
	return nil
}

func (f *fakeThreadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.threads, id)
	return nil
}

func (f *fakeThreadRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ClarificationThread, error) {
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			if thread, found := f.threads[byID.ID]; found {
				copied := *thread
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeThreadRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ClarificationThread, error) {
	var out []*entity.ClarificationThread
	for _, thread := range f.threads {
		copied := *thread
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeThreadRepository) FindOpenBySession(ctx context.Context, sessionId uuid.UUID) (*entity.ClarificationThread, error) {
	for _, thread := range f.threads {
		if thread.SessionId == sessionId && thread.Status == entity.ClarificationStatusOpen {
			copied := *thread
			return &copied, nil
		}
	}
	return nil, nil
}

func TestOpenCreatesThread(t *testing.T) {
	repo := newFakeThreadRepository()
	m := NewManager(repo, DefaultTTL)
	sessionId := uuid.New()

	thread, err := m.Open(context.Background(), sessionId, "it", "", nil)
	require.NoError(t, err)

	assert.Equal(t, sessionId, thread.SessionId)
	assert.Equal(t, "it", thread.OriginalQuery)
	assert.Equal(t, DefaultQuestion, thread.Question)
	assert.Equal(t, DefaultOptions, thread.Options)
	assert.Equal(t, entity.ClarificationStatusOpen, thread.Status)
}

func TestOpenExpiresPriorThread(t *testing.T) {
	repo := newFakeThreadRepository()
	m := NewManager(repo, DefaultTTL)
	sessionId := uuid.New()

	first, err := m.Open(context.Background(), sessionId, "first query", "", nil)
	require.NoError(t, err)

	second, err := m.Open(context.Background(), sessionId, "second query", "which doc?", []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, entity.ClarificationStatusExpired, repo.threads[first.Id].Status)
	assert.Equal(t, entity.ClarificationStatusOpen, repo.threads[second.Id].Status)

	open, err := repo.FindOpenBySession(context.Background(), sessionId)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, second.Id, open.Id)
}

func TestResolveMergesQueries(t *testing.T) {
	repo := newFakeThreadRepository()
	m := NewManager(repo, DefaultTTL)

	thread, err := m.Open(context.Background(), uuid.New(), "what about the results", "", nil)
	require.NoError(t, err)

	res, err := m.Resolve(context.Background(), thread.Id, "  the evaluation results of paper-001  ")
	require.NoError(t, err)

	assert.False(t, res.Fresh)
	assert.Equal(t, "what about the results\nAdditional details: the evaluation results of paper-001", res.MergedQuery)
	assert.Equal(t, entity.ClarificationStatusResolved, repo.threads[thread.Id].Status)
	assert.NotNil(t, repo.threads[thread.Id].ResolvedAt)
}

func TestResolveConsumedThreadIsFresh(t *testing.T) {
	repo := newFakeThreadRepository()
	m := NewManager(repo, DefaultTTL)

	thread, err := m.Open(context.Background(), uuid.New(), "original", "", nil)
	require.NoError(t, err)

	_, err = m.Resolve(context.Background(), thread.Id, "first answer")
	require.NoError(t, err)

	// single-use: the second resolve stands on its own
	res, err := m.Resolve(context.Background(), thread.Id, "second answer")
	require.NoError(t, err)
	assert.True(t, res.Fresh)
	assert.Equal(t, "second answer", res.MergedQuery)
}

func TestResolveMissingThreadIsFresh(t *testing.T) {
	repo := newFakeThreadRepository()
	m := NewManager(repo, DefaultTTL)

	res, err := m.Resolve(context.Background(), uuid.New(), "standalone question")
	require.NoError(t, err)

	assert.True(t, res.Fresh)
	assert.Equal(t, "standalone question", res.MergedQuery)
}

func TestResolveExpiredThreadIsFresh(t *testing.T) {
	repo := newFakeThreadRepository()
	m := NewManager(repo, time.Millisecond)

	thread, err := m.Open(context.Background(), uuid.New(), "original", "", nil)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	res, err := m.Resolve(context.Background(), thread.Id, "late answer")
	require.NoError(t, err)

	assert.True(t, res.Fresh)
	assert.Equal(t, "late answer", res.MergedQuery)
	assert.Equal(t, entity.ClarificationStatusExpired, repo.threads[thread.Id].Status)
}

func TestMerge(t *testing.T) {
	got := Merge(" original query ", " more detail ")
	assert.Equal(t, "original query\nAdditional details: more detail", got)
}
