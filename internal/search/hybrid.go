package search

import (
	"context"
	"strings"

	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"github.com/rs/zerolog"
)

// CandidateStore 候选池/岗位数据的存储协作方。
// 排序核心不关心底层是什么库，只要能按过滤条件取回候选池。
type CandidateStore interface {
	// GetCandidates 按过滤条件取回候选池
	GetCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.Candidate, error)
	// GetJob 取回岗位，不存在时返回错误
	GetJob(ctx context.Context, jobID string) (*types.Job, error)
}

// EmbeddingSource 语义通路的向量来源。
// EmbedQuery 针对临时查询文本（不落盘），失败时返回错误，
// 由编排层降级；EnsureCandidateEmbeddings 内部自行容错，
// 拿不到向量的候选人在返回表中缺失。
type EmbeddingSource interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EnsureCandidateEmbeddings(ctx context.Context, pool []*types.Candidate) map[string][]float64
}

// QueryVectorCache 岗位查询向量的跨请求缓存（可选协作方）。
// 模型版本不一致时按未命中处理，避免混用不同模型的向量空间。
type QueryVectorCache interface {
	GetJobVector(ctx context.Context, jobID string) ([]float64, string, error)
	SetJobVector(ctx context.Context, jobID string, vector []float64, modelVersion string) error
}

// Service 混合检索编排器：关键词、语义、地点三路信号各自独立计算，
// 由融合器合成综合分。每次调用端到端无状态，唯一副作用是
// EmbeddingSource 对向量缓存的写回。
type Service struct {
	store      CandidateStore
	embeddings EmbeddingSource
	parser     *QueryParser
	keyword    *KeywordScorer
	location   *LocationMatcher
	combiner   *Combiner
	logger     zerolog.Logger

	// 可选的岗位查询向量缓存，nil时每次排序都重新生成
	vectorCache  QueryVectorCache
	modelVersion string
}

// NewService 创建混合检索服务
func NewService(store CandidateStore, embeddings EmbeddingSource, dict *Dictionary, weights Weights, logger zerolog.Logger) *Service {
	if dict == nil {
		dict = NewDictionary(nil, nil)
	}
	return &Service{
		store:      store,
		embeddings: embeddings,
		parser:     NewQueryParser(dict),
		keyword:    NewKeywordScorer(),
		location:   NewLocationMatcher(dict),
		combiner:   NewCombiner(weights),
		logger:     logger.With().Str("component", "hybrid_search").Logger(),
	}
}

// SetWeights 运行时调整融合权重
func (s *Service) SetWeights(w Weights) {
	s.combiner.SetWeights(w)
}

// SetVectorCache 注入岗位查询向量缓存，modelVersion 用于命中校验
func (s *Service) SetVectorCache(cache QueryVectorCache, modelVersion string) {
	s.vectorCache = cache
	s.modelVersion = modelVersion
}

// SearchByQuery 自由文本搜索入口。
// location 为空时没有地点信号；limit<=0 表示不截断。
// 语义通路不可用时降级为关键词(+地点)排序，不向调用方抛错。
func (s *Service) SearchByQuery(ctx context.Context, query string, filter types.CandidateFilter, limit int, location string) ([]*types.RankedCandidate, error) {
	ranked, _, err := s.search(ctx, query, filter, limit, location, nil)
	return ranked, err
}

// search 返回排序结果和语义通路是否健康，供 RankByJob 决定是否走兜底。
// queryVec 非空时跳过查询向量生成，直接用于语义打分。
func (s *Service) search(ctx context.Context, query string, filter types.CandidateFilter, limit int, location string, queryVec []float64) ([]*types.RankedCandidate, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*types.RankedCandidate{}, true, nil
	}

	pool, err := s.store.GetCandidates(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(pool) == 0 {
		return []*types.RankedCandidate{}, true, nil
	}

	parsed := s.parser.Parse(query)
	if parsed.Location == "" {
		parsed.Location = location
	}

	keywordScores := s.keyword.Score(parsed, pool)

	semanticScores, semErr := s.semanticScores(ctx, query, pool, queryVec)
	if semErr != nil {
		s.logger.Warn().Err(semErr).Str("query", tracing.SafeQueryText(query)).
			Msg("语义打分不可用，本次搜索降级为关键词排序")
	}

	locationScores := s.location.Score(parsed.Location, pool)

	ranked := s.combiner.Combine(pool, keywordScores, semanticScores, locationScores, limit)
	return ranked, semErr == nil, nil
}

// semanticScores 计算语义相似度分数。
// 自由文本的查询向量临时生成且不落盘；单个候选人向量缺失只影响该候选人。
func (s *Service) semanticScores(ctx context.Context, query string, pool []*types.Candidate, queryVec []float64) (types.ScoreMap, error) {
	scores := make(types.ScoreMap)
	if s.embeddings == nil {
		return scores, nil
	}

	if len(queryVec) == 0 {
		var err error
		queryVec, err = s.embeddings.EmbedQuery(ctx, query)
		if err != nil {
			return scores, err
		}
	}
	if len(queryVec) == 0 {
		return scores, nil
	}

	vectors := s.embeddings.EnsureCandidateEmbeddings(ctx, pool)
	for _, cand := range pool {
		vec, ok := vectors[cand.CandidateID]
		if !ok || len(vec) == 0 {
			continue // 该候选人语义信号缺失，按0处理
		}
		// 余弦相似度在[-1,1]，截断到[0,1]作为归一化分数
		scores[cand.CandidateID] = ClampUnit(CosineSimilarity(queryVec, vec))
	}

	return scores, nil
}

// RankByJob 按岗位排序候选池：从岗位字段合成查询文本后复用
// SearchByQuery；语义通路故障时退回纯关键词的岗位匹配兜底，
// 保证请求总能得到（可能为空的）排序结果。
func (s *Service) RankByJob(ctx context.Context, jobID string, filter types.CandidateFilter, limit int) ([]*types.RankedCandidate, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil || job == nil {
		// 岗位缺失不是边界层错误，返回空列表并记录
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("岗位不存在或读取失败")
		return []*types.RankedCandidate{}, nil
	}

	query := buildJobQuery(job)
	queryVec := s.jobQueryVector(ctx, job.JobID, query)

	ranked, semanticOK, err := s.search(ctx, query, filter, limit, job.Location, queryVec)
	if err != nil {
		return nil, err
	}
	if semanticOK {
		return ranked, nil
	}

	// 语义故障是可恢复路径：记录后用简化的关键词匹配继续服务
	s.logger.Warn().Str("job_id", jobID).
		Msg("语义打分故障，岗位排序退回关键词兜底")
	return s.rankByJobFallback(ctx, job, filter, limit)
}

// jobQueryVector 取岗位查询向量：优先读跨请求缓存（模型版本必须一致），
// 未命中时生成并写回。拿不到向量返回nil，语义通路自行重试或降级。
func (s *Service) jobQueryVector(ctx context.Context, jobID, query string) []float64 {
	if s.vectorCache == nil || s.embeddings == nil {
		return nil
	}

	if vec, version, err := s.vectorCache.GetJobVector(ctx, jobID); err == nil && len(vec) > 0 && version == s.modelVersion {
		return vec
	}

	vec, err := s.embeddings.EmbedQuery(ctx, query)
	if err != nil || len(vec) == 0 {
		return nil
	}
	if err := s.vectorCache.SetJobVector(ctx, jobID, vec, s.modelVersion); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("写入岗位查询向量缓存失败")
	}
	return vec
}

// buildJobQuery 从岗位字段合成搜索查询：标题+角色+技能+描述摘要
func buildJobQuery(job *types.Job) string {
	parts := []string{job.Title, job.Role}
	parts = append(parts, job.RequiredSkills...)
	parts = append(parts, job.PreferredSkills...)

	desc := job.Description
	if len(desc) > 200 {
		desc = desc[:200]
	}
	if desc != "" {
		parts = append(parts, desc)
	}

	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(p))
		}
	}
	return strings.Join(nonEmpty, " ")
}

// rankByJobFallback 纯关键词的岗位匹配：候选人技能与岗位全文的
// 子串重叠占0.7，教育/经历是否存在各占0.1/0.2
func (s *Service) rankByJobFallback(ctx context.Context, job *types.Job, filter types.CandidateFilter, limit int) ([]*types.RankedCandidate, error) {
	pool, err := s.store.GetCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	jdText := strings.ToLower(strings.Join(append([]string{job.Title, job.Role, job.Description},
		append(job.RequiredSkills, job.PreferredSkills...)...), " "))

	keywordScores := make(types.ScoreMap, len(pool))
	for _, cand := range pool {
		if cand == nil {
			continue
		}
		var skillScore float64
		if len(cand.Skills) > 0 {
			matched := 0
			for _, skill := range cand.Skills {
				if skill != "" && strings.Contains(jdText, strings.ToLower(skill)) {
					matched++
				}
			}
			skillScore = float64(matched) / float64(len(cand.Skills))
		}

		var eduScore, expScore float64
		if len(cand.Education) > 0 {
			eduScore = 1.0
		}
		if len(cand.Experience) > 0 {
			expScore = 1.0
		}

		score := 0.7*skillScore + 0.1*eduScore + 0.2*expScore
		if score > 0 {
			keywordScores[cand.CandidateID] = ClampUnit(score)
		}
	}

	return s.combiner.Combine(pool, keywordScores, nil, nil, limit), nil
}
