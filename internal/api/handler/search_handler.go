package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// SearchService 排序编排能力，由 search.Service 实现
type SearchService interface {
	SearchByQuery(ctx context.Context, query string, filter types.CandidateFilter, limit int, location string) ([]*types.RankedCandidate, error)
	RankByJob(ctx context.Context, jobID string, filter types.CandidateFilter, limit int) ([]*types.RankedCandidate, error)
}

// SearchHandler 负责处理简历搜索与岗位排序请求
type SearchHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	service SearchService
	logger  zerolog.Logger
}

// NewSearchHandler 创建SearchHandler
func NewSearchHandler(cfg *config.Config, st *storage.Storage, service SearchService, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		cfg:     cfg,
		storage: st,
		service: service,
		logger:  logger.With().Str("component", "search_handler").Logger(),
	}
}

// HandleSearchResumes 处理自由文本搜索简历的请求。
// GET /api/v1/search/resumes?q=...&location=...&limit=...&folder_id=...&owner_id=...
func (h *SearchHandler) HandleSearchResumes(ctx context.Context, c *app.RequestContext) {
	query := c.Query("q")
	if query == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "查询参数 q 不能为空"})
		return
	}

	limit := h.cfg.Search.DefaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	filter := types.CandidateFilter{
		FolderID: c.Query("folder_id"),
		OwnerID:  c.Query("owner_id"),
	}
	location := c.Query("location")

	ranked, err := h.service.SearchByQuery(ctx, query, filter, limit, location)
	if err != nil {
		h.logger.Error().Err(err).Str("query", tracing.SafeQueryText(query)).Msg("搜索简历失败")
		tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, consts.StatusInternalServerError)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "执行搜索失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"message":     "搜索成功",
		"query":       query,
		"total_count": len(ranked),
		"data":        buildRankedItems(ranked),
	})
}

// HandleRankResumesByJob 处理根据JobID排序简历的请求。
// GET /api/v1/jobs/:job_id/resumes/rank
// 完整排序结果作为"黄金结果集"缓存到Redis ZSET，后续分页直接读缓存。
func (h *SearchHandler) HandleRankResumesByJob(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "job_id 不能为空"})
		return
	}

	displayLimit := h.cfg.Search.DefaultLimit
	if limitStr := c.Query("display_limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			displayLimit = n
		}
	}
	cursor := 0
	if cursorStr := c.Query("cursor"); cursorStr != "" {
		if n, err := strconv.Atoi(cursorStr); err == nil && n >= 0 {
			cursor = n
		}
	}

	filter := types.CandidateFilter{
		FolderID: c.Query("folder_id"),
		OwnerID:  c.Query("owner_id"),
	}

	// 1. 检查会话缓存
	if h.storage.Redis != nil {
		cached, totalCount, err := h.storage.Redis.GetCachedRankedResults(ctx, jobID, int64(cursor), int64(displayLimit))
		if err == nil && len(cached) > 0 {
			h.respondFromCache(ctx, c, jobID, cursor, cached, totalCount)
			return
		}
	}

	// 2. 缓存未命中且为首次请求，执行完整排序流程
	if cursor == 0 {
		h.rankAndRespond(ctx, c, jobID, filter, cursor, displayLimit)
		return
	}

	// 3. 非首次请求但缓存失效或已读完
	c.JSON(consts.StatusOK, utils.H{
		"message":     "已查看所有匹配的简历",
		"data":        []interface{}{},
		"job_id":      jobID,
		"total_count": 0,
		"next_cursor": cursor,
	})
}

// respondFromCache 从会话缓存分页结果回源候选人详情后响应
func (h *SearchHandler) respondFromCache(ctx context.Context, c *app.RequestContext, jobID string, cursor int, cached []storage.CachedRankedItem, totalCount int64) {
	ids := make([]string, 0, len(cached))
	for _, item := range cached {
		ids = append(ids, item.CandidateID)
	}

	candidates, err := h.storage.MySQL.GetCandidatesByIDs(ctx, ids)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("回源候选人详情失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "获取候选人详情失败"})
		return
	}

	byID := make(map[string]*types.Candidate, len(candidates))
	for _, cand := range candidates {
		byID[cand.CandidateID] = cand
	}

	data := make([]utils.H, 0, len(cached))
	for _, item := range cached {
		cand, ok := byID[item.CandidateID]
		if !ok {
			continue // 候选人已删除，跳过缓存条目
		}
		data = append(data, candidateItem(cand, item.SearchScore, item.Components))
	}

	c.JSON(consts.StatusOK, utils.H{
		"message":     "排序成功 (来自缓存)",
		"data":        data,
		"job_id":      jobID,
		"total_count": totalCount,
		"next_cursor": cursor + len(data),
	})
}

// rankAndRespond 执行完整排序流程：分布式锁防止并发重复计算，
// 结果写入会话缓存后返回首页
func (h *SearchHandler) rankAndRespond(ctx context.Context, c *app.RequestContext, jobID string, filter types.CandidateFilter, cursor, displayLimit int) {
	lockKey := fmt.Sprintf(constants.KeySearchLock, jobID)

	if h.storage.Redis != nil {
		lockValue, err := h.storage.Redis.AcquireLock(ctx, lockKey, 5*time.Minute)
		if err != nil {
			// 锁服务故障不阻塞排序，最坏情况是重复计算
			h.logger.Warn().Err(err).Str("job_id", jobID).Msg("获取搜索锁失败，继续执行")
		} else if lockValue == "" {
			c.JSON(consts.StatusAccepted, utils.H{
				"message":     "您的排序请求正在处理中，请稍后重试",
				"status":      "processing",
				"job_id":      jobID,
				"retry_after": 2,
			})
			return
		} else {
			defer func() {
				if released, err := h.storage.Redis.ReleaseLock(ctx, lockKey, lockValue); err != nil || !released {
					h.logger.Warn().Err(err).Str("job_id", jobID).Bool("released", released).Msg("释放搜索锁失败")
				}
			}()
		}
	}

	startTime := time.Now()
	// limit=0表示不截断，完整结果进会话缓存供后续分页
	ranked, err := h.service.RankByJob(ctx, jobID, filter, 0)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("岗位排序失败")
		tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, consts.StatusInternalServerError)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "执行排序失败"})
		return
	}
	h.logger.Info().Str("job_id", jobID).Int("result_count", len(ranked)).
		Dur("elapsed", time.Since(startTime)).Msg("岗位排序流程完成")

	if len(ranked) == 0 {
		c.JSON(consts.StatusOK, utils.H{
			"message":     "没有找到匹配的简历",
			"data":        []interface{}{},
			"job_id":      jobID,
			"total_count": 0,
			"next_cursor": 0,
		})
		return
	}

	if h.storage.Redis != nil {
		ttl := time.Duration(h.cfg.Search.SessionCacheTTLMinutes) * time.Minute
		if err := h.storage.Redis.CacheRankedResults(ctx, jobID, ranked, ttl); err != nil {
			// 缓存失败只影响后续分页性能，不阻塞响应
			h.logger.Warn().Err(err).Str("job_id", jobID).Msg("缓存排序结果失败")
		}
	}

	end := cursor + displayLimit
	if end > len(ranked) {
		end = len(ranked)
	}
	page := ranked[cursor:end]

	c.JSON(consts.StatusOK, utils.H{
		"message":     "排序成功",
		"data":        buildRankedItems(page),
		"job_id":      jobID,
		"total_count": len(ranked),
		"next_cursor": cursor + len(page),
	})
}

// HandleCheckRankStatus 查询岗位排序的处理状态。
// GET /api/v1/jobs/:job_id/rank/status
func (h *SearchHandler) HandleCheckRankStatus(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "job_id 不能为空"})
		return
	}

	if h.storage.Redis == nil {
		c.JSON(consts.StatusOK, utils.H{
			"status":  "not_started",
			"job_id":  jobID,
			"message": "会话缓存不可用，请直接发起排序请求",
		})
		return
	}

	// 1. 缓存存在意味着排序已完成
	cached, totalCount, err := h.storage.Redis.GetCachedRankedResults(ctx, jobID, 0, 1)
	if err == nil && len(cached) > 0 {
		c.JSON(consts.StatusOK, utils.H{
			"status":      "completed",
			"job_id":      jobID,
			"total_count": totalCount,
			"message":     "排序已完成，可以获取结果",
		})
		return
	}

	// 2. 锁存在意味着排序正在进行
	lockKey := fmt.Sprintf(constants.KeySearchLock, jobID)
	lockExists, err := h.storage.Redis.Client.Exists(ctx, lockKey).Result()
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("检查搜索锁状态失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "检查排序状态失败"})
		return
	}

	if lockExists > 0 {
		ttl, err := h.storage.Redis.Client.TTL(ctx, lockKey).Result()
		if err != nil {
			ttl = 0
		}
		c.JSON(consts.StatusOK, utils.H{
			"status":      "processing",
			"job_id":      jobID,
			"message":     "您的排序请求正在处理中，请稍后重试",
			"retry_after": 2,
			"ttl_seconds": int(ttl.Seconds()),
		})
		return
	}

	// 3. 既无缓存也无锁
	c.JSON(consts.StatusOK, utils.H{
		"status":  "not_started",
		"job_id":  jobID,
		"message": "排序尚未开始或之前的排序已失败，请发起新的排序请求",
	})
}

// buildRankedItems 把排序结果转换为响应条目
func buildRankedItems(ranked []*types.RankedCandidate) []utils.H {
	items := make([]utils.H, 0, len(ranked))
	for _, r := range ranked {
		if r == nil || r.Candidate == nil {
			continue
		}
		items = append(items, candidateItem(r.Candidate, r.SearchScore, r.Components))
	}
	return items
}

// candidateItem 单个候选人的响应表示
func candidateItem(cand *types.Candidate, score float64, components types.ComponentScores) utils.H {
	return utils.H{
		"candidate_id": cand.CandidateID,
		"name":         cand.Name,
		"email":        cand.Email,
		"filename":     cand.Filename,
		"location":     cand.Location(),
		"skills":       cand.Skills,
		"search_score": score,
		"component_scores": utils.H{
			"keyword":  components.Keyword,
			"semantic": components.Semantic,
			"location": components.Location,
		},
	}
}
