package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"resume-match-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 可编程的向量提供方，记录调用次数
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	vector []float64
	err    error
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) GetDimensions() int { return len(f.vector) }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeVectorStore 记录写回调用
type fakeVectorStore struct {
	mu         sync.Mutex
	candidates map[string][]float64
	jobs       map[string][]float64
	err        error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		candidates: make(map[string][]float64),
		jobs:       make(map[string][]float64),
	}
}

func (f *fakeVectorStore) UpdateCandidateEmbedding(ctx context.Context, id string, vec []float64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.candidates[id] = vec
	return nil
}

func (f *fakeVectorStore) UpdateJobEmbedding(ctx context.Context, id string, vec []float64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs[id] = vec
	return nil
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 1}
}

func newTestManager(t *testing.T, embedder TextEmbedder, store VectorStore, opts ...ManagerOption) *Manager {
	t.Helper()
	base := []ManagerOption{WithRetryPolicy(fastRetry())}
	m, err := NewManager(embedder, store, zerolog.Nop(), append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func TestEnsureCandidateEmbeddingFreshCacheSkipsProvider(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float64{0.1, 0.2}}
	store := newFakeVectorStore()
	m := newTestManager(t, embedder, store)

	cand := &types.Candidate{CandidateID: "c1", Name: "Alice", Skills: []string{"go"}}

	vec := m.EnsureCandidateEmbedding(context.Background(), cand)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
	assert.Equal(t, 1, embedder.callCount())
	assert.NotNil(t, cand.EmbeddingUpdatedAt)
	assert.Equal(t, []float64{0.1, 0.2}, store.candidates["c1"], "新向量应写回存储")

	// 第二次调用命中新鲜缓存，提供方不再被调
	vec = m.EnsureCandidateEmbedding(context.Background(), cand)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
	assert.Equal(t, 1, embedder.callCount())
}

func TestEnsureCandidateEmbeddingStaleTriggersRefresh(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float64{0.3}}
	m := newTestManager(t, embedder, newFakeVectorStore())

	old := time.Now().Add(-31 * 24 * time.Hour)
	cand := &types.Candidate{
		CandidateID:        "c1",
		Name:               "Bob",
		Embedding:          []float64{9, 9},
		EmbeddingUpdatedAt: &old,
	}

	vec := m.EnsureCandidateEmbedding(context.Background(), cand)
	assert.Equal(t, []float64{0.3}, vec, "超过30天的向量应重新生成")
	assert.Equal(t, 1, embedder.callCount())
}

func TestEnsureCandidateEmbeddingDegradesToStaleVector(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("提供方不可用")}
	m := newTestManager(t, embedder, newFakeVectorStore())

	old := time.Now().Add(-60 * 24 * time.Hour)
	cand := &types.Candidate{
		CandidateID:        "c1",
		Name:               "Carol",
		Embedding:          []float64{0.7, 0.7},
		EmbeddingUpdatedAt: &old,
	}

	vec := m.EnsureCandidateEmbedding(context.Background(), cand)
	assert.Equal(t, []float64{0.7, 0.7}, vec, "提供方故障时降级返回旧向量而非报错")
	// 重试策略耗尽了2次尝试
	assert.Equal(t, 2, embedder.callCount())
}

func TestEnsureCandidateEmbeddingDegradesToNilWhenNoCache(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("提供方不可用")}
	m := newTestManager(t, embedder, newFakeVectorStore())

	cand := &types.Candidate{CandidateID: "c1", Name: "Dave"}
	vec := m.EnsureCandidateEmbedding(context.Background(), cand)
	assert.Empty(t, vec)
}

func TestEnsureCandidateEmbeddingsBatch(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float64{0.5}}
	m := newTestManager(t, embedder, newFakeVectorStore(), WithBatchSize(2))

	now := time.Now()
	pool := []*types.Candidate{
		{CandidateID: "fresh", Name: "F", Embedding: []float64{1}, EmbeddingUpdatedAt: &now},
		{CandidateID: "stale1", Name: "S1"},
		{CandidateID: "stale2", Name: "S2"},
		nil,
	}

	result := m.EnsureCandidateEmbeddings(context.Background(), pool)

	assert.Equal(t, []float64{1}, result["fresh"], "新鲜的直接用缓存")
	assert.Equal(t, []float64{0.5}, result["stale1"])
	assert.Equal(t, []float64{0.5}, result["stale2"])
	// 只有两个过期的触发提供方调用
	assert.Equal(t, 2, embedder.callCount())
}

func TestEnsureCandidateEmbeddingsBatchPartialFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("限流")}
	m := newTestManager(t, embedder, newFakeVectorStore())

	pool := []*types.Candidate{
		{CandidateID: "no-cache", Name: "N"},
	}
	result := m.EnsureCandidateEmbeddings(context.Background(), pool)

	// 拿不到向量的候选人在返回表中缺失，而不是映射到空向量
	assert.NotContains(t, result, "no-cache")
}

func TestEnsureJobEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float64{0.8}}
	store := newFakeVectorStore()
	m := newTestManager(t, embedder, store)

	job := &types.Job{JobID: "j1", Title: "Engineer"}
	vec := m.EnsureJobEmbedding(context.Background(), job)

	assert.Equal(t, []float64{0.8}, vec)
	assert.Equal(t, []float64{0.8}, store.jobs["j1"])
	assert.NotNil(t, job.EmbeddingUpdatedAt)

	vec = m.EnsureJobEmbedding(context.Background(), job)
	assert.Equal(t, []float64{0.8}, vec)
	assert.Equal(t, 1, embedder.callCount())
}

func TestEnsureEmbeddingNilInputs(t *testing.T) {
	m := newTestManager(t, &fakeEmbedder{vector: []float64{1}}, nil)
	assert.Nil(t, m.EnsureCandidateEmbedding(context.Background(), nil))
	assert.Nil(t, m.EnsureJobEmbedding(context.Background(), nil))
}

func TestEmbedQueryPropagatesError(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("超时")}
	m := newTestManager(t, embedder, nil)

	_, err := m.EmbedQuery(context.Background(), "python developer")
	assert.Error(t, err, "查询向量失败交由调用方降级")
}

func TestFreshnessHonorsInjectedClock(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float64{0.2}}
	base := time.Now()
	current := base
	m := newTestManager(t, embedder, newFakeVectorStore(),
		WithClock(func() time.Time { return current }))

	cand := &types.Candidate{CandidateID: "c1", Name: "Eve", Skills: []string{"go"}}
	m.EnsureCandidateEmbedding(context.Background(), cand)
	require.Equal(t, 1, embedder.callCount())

	// 29天后仍新鲜
	current = base.Add(29 * 24 * time.Hour)
	m.EnsureCandidateEmbedding(context.Background(), cand)
	assert.Equal(t, 1, embedder.callCount())

	// 31天后过期，触发重新生成
	current = base.Add(31 * 24 * time.Hour)
	m.EnsureCandidateEmbedding(context.Background(), cand)
	assert.Equal(t, 2, embedder.callCount())
}

func TestNewManagerRequiresEmbedder(t *testing.T) {
	_, err := NewManager(nil, nil, zerolog.Nop())
	assert.Error(t, err)
}
