package router

import (
	"context"

	"resume-match-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, searchHandler *handler.SearchHandler, ingestHandler *handler.IngestHandler) {
	api := h.Group("/api/v1")

	// 自由文本搜索
	api.GET("/search/resumes", searchHandler.HandleSearchResumes)

	// 按岗位排序候选池
	jobs := api.Group("/jobs/:job_id")
	jobs.GET("/resumes/rank", searchHandler.HandleRankResumesByJob)
	jobs.GET("/rank/status", searchHandler.HandleCheckRankStatus)

	// 结构化数据写入口
	api.POST("/jobs", ingestHandler.HandleUpsertJob)
	api.POST("/candidates", ingestHandler.HandleUpsertCandidate)

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
