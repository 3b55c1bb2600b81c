package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFreshnessWindow 向量缓存的新鲜度窗口，超龄即视为过期
	DefaultFreshnessWindow = 30 * 24 * time.Hour
	// DefaultBatchSize 批量生成向量时的并发上限，迁就提供方限流
	DefaultBatchSize = 20
	// 单个实体刷新锁的持有时长
	refreshLockTTL = 2 * time.Minute
)

// VectorStore 向量写回协作方。排序核心从不删除向量，删除属于存储层。
type VectorStore interface {
	UpdateCandidateEmbedding(ctx context.Context, candidateID string, vector []float64, updatedAt time.Time) error
	UpdateJobEmbedding(ctx context.Context, jobID string, vector []float64, updatedAt time.Time) error
}

// Locker 可选的分布式咨询锁，用于避免并发搜索对同一实体的向量重复刷新
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// Manager 包装外部嵌入能力：按实体跟踪过期状态，惰性重新生成并写回。
// 提供方故障时降级为旧向量/空向量而不是抛错——可用性优先。
type Manager struct {
	embedder  TextEmbedder
	store     VectorStore
	locker    Locker // 可为nil，nil时跳过互斥直接刷新
	retry     RetryPolicy
	freshness time.Duration
	batchSize int
	logger    zerolog.Logger

	// 测试钩子
	now func() time.Time
}

// ManagerOption Manager的可选配置
type ManagerOption func(*Manager)

// WithFreshnessWindow 覆盖新鲜度窗口
func WithFreshnessWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.freshness = d
		}
	}
}

// WithBatchSize 覆盖批量并发上限
func WithBatchSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithRetryPolicy 覆盖重试策略
func WithRetryPolicy(p RetryPolicy) ManagerOption {
	return func(m *Manager) {
		m.retry = p
	}
}

// WithLocker 注入分布式锁
func WithLocker(l Locker) ManagerOption {
	return func(m *Manager) {
		m.locker = l
	}
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager 创建向量缓存管理器
func NewManager(embedder TextEmbedder, store VectorStore, logger zerolog.Logger, opts ...ManagerOption) (*Manager, error) {
	if embedder == nil {
		return nil, fmt.Errorf("TextEmbedder 不能为空")
	}

	m := &Manager{
		embedder:  embedder,
		store:     store,
		retry:     DefaultRetryPolicy(),
		freshness: DefaultFreshnessWindow,
		batchSize: DefaultBatchSize,
		logger:    logger.With().Str("component", "embedding_manager").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// FreshnessWindow 返回向量缓存的新鲜度窗口
func (m *Manager) FreshnessWindow() time.Duration {
	return m.freshness
}

// EmbedQuery 为临时查询文本生成向量，不做任何持久化。
// 重试耗尽后把错误交给调用方决定如何降级。
func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vec, err := m.embedWithRetry(ctx, Truncate(text, MaxInputLength))
	if err != nil {
		return nil, fmt.Errorf("查询向量生成失败: %w", err)
	}
	return vec, nil
}

// EnsureCandidateEmbedding 保证候选人有可用向量：缓存新鲜则直接返回，
// 否则从结构化字段合成文本、调提供方生成并写回。
// 提供方故障时记录告警并返回旧向量（可能为空），绝不抛错。
func (m *Manager) EnsureCandidateEmbedding(ctx context.Context, cand *types.Candidate) []float64 {
	if cand == nil {
		return nil
	}
	if m.isFresh(cand.Embedding, cand.EmbeddingUpdatedAt) {
		return cand.Embedding
	}

	return m.refreshCandidate(ctx, cand)
}

// EnsureCandidateEmbeddings 批量版本：过期的候选人并发刷新，
// 并发度受 batchSize 约束。返回表中缺失的候选人表示本次拿不到向量。
func (m *Manager) EnsureCandidateEmbeddings(ctx context.Context, pool []*types.Candidate) map[string][]float64 {
	result := make(map[string][]float64, len(pool))
	var mu sync.Mutex

	var stale []*types.Candidate
	for _, cand := range pool {
		if cand == nil {
			continue
		}
		if m.isFresh(cand.Embedding, cand.EmbeddingUpdatedAt) {
			result[cand.CandidateID] = cand.Embedding
		} else {
			stale = append(stale, cand)
		}
	}

	if len(stale) == 0 {
		return result
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchSize)
	for _, cand := range stale {
		cand := cand
		g.Go(func() error {
			vec := m.refreshCandidate(gctx, cand)
			if len(vec) > 0 {
				mu.Lock()
				result[cand.CandidateID] = vec
				mu.Unlock()
			}
			return nil // 单个失败不终止整批
		})
	}
	_ = g.Wait()

	return result
}

// EnsureJobEmbedding 岗位版本的惰性刷新，语义同候选人路径
func (m *Manager) EnsureJobEmbedding(ctx context.Context, job *types.Job) []float64 {
	if job == nil {
		return nil
	}
	if m.isFresh(job.Embedding, job.EmbeddingUpdatedAt) {
		return job.Embedding
	}

	release := m.tryLock(ctx, "job", job.JobID)
	if release == nil {
		return job.Embedding // 其他进程正在刷新，先用旧向量
	}
	defer release()

	vec, err := m.embedWithRetry(ctx, BuildJobText(job))
	if err != nil {
		m.logger.Warn().Err(err).Str("job_id", job.JobID).
			Msg("岗位向量生成失败，降级使用旧向量")
		return job.Embedding
	}

	now := m.now()
	if m.store != nil {
		if err := m.store.UpdateJobEmbedding(ctx, job.JobID, vec, now); err != nil {
			m.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("岗位向量写回失败")
		}
	}
	job.Embedding = vec
	job.EmbeddingUpdatedAt = &now
	return vec
}

// refreshCandidate 重新生成并写回单个候选人的向量
func (m *Manager) refreshCandidate(ctx context.Context, cand *types.Candidate) []float64 {
	release := m.tryLock(ctx, "candidate", cand.CandidateID)
	if release == nil {
		return cand.Embedding
	}
	defer release()

	vec, err := m.embedWithRetry(ctx, BuildCandidateText(cand))
	if err != nil {
		m.logger.Warn().Err(err).Str("candidate_id", cand.CandidateID).
			Msg("候选人向量生成失败，降级使用旧向量")
		return cand.Embedding
	}

	now := m.now()
	if m.store != nil {
		if err := m.store.UpdateCandidateEmbedding(ctx, cand.CandidateID, vec, now); err != nil {
			// 写回失败只影响下次缓存命中，不影响本次搜索
			m.logger.Warn().Err(err).Str("candidate_id", cand.CandidateID).Msg("候选人向量写回失败")
		}
	}
	cand.Embedding = vec
	cand.EmbeddingUpdatedAt = &now
	return vec
}

// embedWithRetry 带重试策略的单文本向量化
func (m *Manager) embedWithRetry(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("嵌入文本为空")
	}

	var vec []float64
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		vectors, err := m.embedder.EmbedStrings(ctx, []string{text})
		if err != nil {
			return err
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return fmt.Errorf("提供方返回空向量")
		}
		vec = vectors[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// isFresh 判断缓存向量是否仍在新鲜度窗口内
func (m *Manager) isFresh(vec []float64, updatedAt *time.Time) bool {
	if len(vec) == 0 || updatedAt == nil {
		return false
	}
	return m.now().Sub(*updatedAt) <= m.freshness
}

// tryLock 获取单实体刷新锁，返回释放函数；
// 未配置locker时直接放行，锁被他人持有时返回nil表示跳过刷新
func (m *Manager) tryLock(ctx context.Context, kind, id string) func() {
	if m.locker == nil {
		return func() {}
	}

	lockKey := fmt.Sprintf(constants.KeyEmbeddingRefreshLock, kind, id)
	lockValue, err := m.locker.AcquireLock(ctx, lockKey, refreshLockTTL)
	if err != nil {
		// 锁服务故障不应阻塞刷新，记录后继续
		m.logger.Warn().Err(err).Str("lock_key", lockKey).Msg("获取刷新锁失败，继续刷新")
		return func() {}
	}
	if lockValue == "" {
		return nil
	}
	return func() {
		if _, err := m.locker.ReleaseLock(ctx, lockKey, lockValue); err != nil {
			m.logger.Warn().Err(err).Str("lock_key", lockKey).Msg("释放刷新锁失败")
		}
	}
}
