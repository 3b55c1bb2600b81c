package handler

import (
	"context"
	"time"

	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IngestHandler 负责岗位与候选人数据的写入口。
// 解析管线是黑盒：这里只接收已结构化的字段，不做文本抽取。
type IngestHandler struct {
	storage *storage.Storage
	logger  zerolog.Logger
}

// NewIngestHandler 创建IngestHandler
func NewIngestHandler(st *storage.Storage, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		storage: st,
		logger:  logger.With().Str("component", "ingest_handler").Logger(),
	}
}

// upsertCandidateRequest 候选人写入请求体
type upsertCandidateRequest struct {
	types.Candidate
	FolderID string `json:"folder_id"`
	OwnerID  string `json:"owner_id"`
}

// HandleUpsertJob 创建或更新岗位。
// POST /api/v1/jobs
// 岗位变更后使该岗位的会话缓存与查询向量缓存失效，并补发向量刷新事件。
func (h *IngestHandler) HandleUpsertJob(ctx context.Context, c *app.RequestContext) {
	var job types.Job
	if err := c.BindAndValidate(&job); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败: " + err.Error()})
		return
	}
	if job.Title == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "岗位标题不能为空"})
		return
	}

	if err := h.storage.MySQL.UpsertJob(ctx, &job); err != nil {
		h.logger.Error().Err(err).Str("job_id", job.JobID).Msg("写入岗位失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "写入岗位失败"})
		return
	}

	h.invalidateJobCaches(ctx, job.JobID)
	h.publishRefresh(ctx, storage.RefreshKindJob, job.JobID)

	c.JSON(consts.StatusOK, utils.H{
		"message": "岗位已保存",
		"job_id":  job.JobID,
	})
}

// HandleUpsertCandidate 创建或更新候选人。
// POST /api/v1/candidates
func (h *IngestHandler) HandleUpsertCandidate(ctx context.Context, c *app.RequestContext) {
	var req upsertCandidateRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败: " + err.Error()})
		return
	}
	if req.Name == "" && req.Email == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "候选人姓名和邮箱不能同时为空"})
		return
	}

	if err := h.storage.MySQL.UpsertCandidate(ctx, &req.Candidate, req.FolderID, req.OwnerID); err != nil {
		h.logger.Error().Err(err).Str("candidate_id", req.CandidateID).Msg("写入候选人失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "写入候选人失败"})
		return
	}

	h.publishRefresh(ctx, storage.RefreshKindCandidate, req.CandidateID)

	c.JSON(consts.StatusOK, utils.H{
		"message":      "候选人已保存",
		"candidate_id": req.CandidateID,
	})
}

// invalidateJobCaches 岗位变更后清理派生缓存，失败只记录不阻塞写入
func (h *IngestHandler) invalidateJobCaches(ctx context.Context, jobID string) {
	if h.storage.Redis == nil {
		return
	}
	if err := h.storage.Redis.InvalidateSearchSession(ctx, jobID); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("清理岗位缓存失败")
	}
}

// publishRefresh 数据变更后补发向量刷新事件，队列不可用时留给过期扫描兜底
func (h *IngestHandler) publishRefresh(ctx context.Context, kind, entityID string) {
	if h.storage.RabbitMQ == nil {
		return
	}
	msg := storage.EmbeddingRefreshMessage{
		MessageID:  uuid.NewString(),
		Kind:       kind,
		EntityID:   entityID,
		Reason:     "updated",
		EnqueuedAt: time.Now(),
	}
	if err := h.storage.RabbitMQ.PublishEmbeddingRefresh(ctx, msg); err != nil {
		h.logger.Warn().Err(err).Str("entity_id", entityID).Str("kind", kind).
			Msg("发布向量刷新事件失败")
	}
}
