package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"resume-match-go/internal/config"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route/param"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSearchService 可编程的排序服务，记录收到的参数
type fakeSearchService struct {
	ranked    []*types.RankedCandidate
	err       error
	lastQuery string
	lastJobID string
	lastLimit int
}

func (f *fakeSearchService) SearchByQuery(ctx context.Context, query string, filter types.CandidateFilter, limit int, location string) ([]*types.RankedCandidate, error) {
	f.lastQuery = query
	f.lastLimit = limit
	return f.ranked, f.err
}

func (f *fakeSearchService) RankByJob(ctx context.Context, jobID string, filter types.CandidateFilter, limit int) ([]*types.RankedCandidate, error) {
	f.lastJobID = jobID
	f.lastLimit = limit
	return f.ranked, f.err
}

func testRanked(ids ...string) []*types.RankedCandidate {
	out := make([]*types.RankedCandidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, &types.RankedCandidate{
			Candidate:   &types.Candidate{CandidateID: id, Name: "候选人" + id, Skills: []string{"go"}},
			SearchScore: float64(90 - i*10),
			Components:  types.ComponentScores{Keyword: 80, Semantic: 70, Location: 0},
		})
	}
	return out
}

// newTestHandler Redis/RabbitMQ均不可用的最小环境，验证降级路径
func newTestHandler(service SearchService) *SearchHandler {
	cfg := &config.Config{}
	cfg.Search.DefaultLimit = 10
	cfg.Search.SessionCacheTTLMinutes = 30
	return NewSearchHandler(cfg, &storage.Storage{}, service, zerolog.Nop())
}

func decodeBody(t *testing.T, c *app.RequestContext) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(c.Response.Body(), &body))
	return body
}

func TestHandleSearchResumesSuccess(t *testing.T) {
	service := &fakeSearchService{ranked: testRanked("c1", "c2")}
	h := newTestHandler(service)

	c := app.NewContext(16)
	c.Request.SetRequestURI("/api/v1/search/resumes?q=python%20aws&limit=5")
	h.HandleSearchResumes(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	assert.Equal(t, "python aws", service.lastQuery)
	assert.Equal(t, 5, service.lastLimit)

	body := decodeBody(t, c)
	assert.Equal(t, float64(2), body["total_count"])
	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 2)
	first := data[0].(map[string]interface{})
	assert.Equal(t, "c1", first["candidate_id"])
	assert.Equal(t, float64(90), first["search_score"])
	comp := first["component_scores"].(map[string]interface{})
	assert.Equal(t, float64(80), comp["keyword"])
}

func TestHandleSearchResumesMissingQuery(t *testing.T) {
	h := newTestHandler(&fakeSearchService{})

	c := app.NewContext(16)
	c.Request.SetRequestURI("/api/v1/search/resumes")
	h.HandleSearchResumes(context.Background(), c)

	assert.Equal(t, consts.StatusBadRequest, c.Response.StatusCode())
}

func TestHandleSearchResumesServiceError(t *testing.T) {
	h := newTestHandler(&fakeSearchService{err: fmt.Errorf("数据库连接失败")})

	c := app.NewContext(16)
	c.Request.SetRequestURI("/api/v1/search/resumes?q=python")
	h.HandleSearchResumes(context.Background(), c)

	assert.Equal(t, consts.StatusInternalServerError, c.Response.StatusCode())
}

func TestHandleSearchResumesDefaultLimit(t *testing.T) {
	service := &fakeSearchService{}
	h := newTestHandler(service)

	c := app.NewContext(16)
	c.Request.SetRequestURI("/api/v1/search/resumes?q=python&limit=abc")
	h.HandleSearchResumes(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	assert.Equal(t, h.cfg.Search.DefaultLimit, service.lastLimit, "非法limit回落到默认值")
}

func TestHandleRankResumesByJobWithoutCache(t *testing.T) {
	service := &fakeSearchService{ranked: testRanked("c1", "c2", "c3")}
	h := newTestHandler(service)

	c := app.NewContext(16)
	c.Params = param.Params{{Key: "job_id", Value: "job-1"}}
	c.Request.SetRequestURI("/api/v1/jobs/job-1/resumes/rank?display_limit=2")
	h.HandleRankResumesByJob(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	assert.Equal(t, "job-1", service.lastJobID)
	// 完整结果集参与缓存，limit=0表示不截断
	assert.Equal(t, 0, service.lastLimit)

	body := decodeBody(t, c)
	assert.Equal(t, float64(3), body["total_count"])
	data := body["data"].([]interface{})
	assert.Len(t, data, 2, "响应只返回display_limit条")
	assert.Equal(t, float64(2), body["next_cursor"])
}

func TestHandleRankResumesByJobEmptyResult(t *testing.T) {
	h := newTestHandler(&fakeSearchService{})

	c := app.NewContext(16)
	c.Params = param.Params{{Key: "job_id", Value: "job-x"}}
	c.Request.SetRequestURI("/api/v1/jobs/job-x/resumes/rank")
	h.HandleRankResumesByJob(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	body := decodeBody(t, c)
	assert.Equal(t, float64(0), body["total_count"])
	assert.Equal(t, "没有找到匹配的简历", body["message"])
}

func TestHandleRankResumesByJobMissingJobID(t *testing.T) {
	h := newTestHandler(&fakeSearchService{})

	c := app.NewContext(16)
	c.Request.SetRequestURI("/api/v1/jobs//resumes/rank")
	h.HandleRankResumesByJob(context.Background(), c)

	assert.Equal(t, consts.StatusBadRequest, c.Response.StatusCode())
}

func TestHandleRankResumesByJobLaterCursorWithoutCache(t *testing.T) {
	service := &fakeSearchService{ranked: testRanked("c1")}
	h := newTestHandler(service)

	c := app.NewContext(16)
	c.Params = param.Params{{Key: "job_id", Value: "job-1"}}
	c.Request.SetRequestURI("/api/v1/jobs/job-1/resumes/rank?cursor=10")
	h.HandleRankResumesByJob(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	body := decodeBody(t, c)
	// 非首页且缓存失效时不重新排序
	assert.Equal(t, "已查看所有匹配的简历", body["message"])
	assert.Empty(t, service.lastJobID)
}

func TestHandleCheckRankStatusWithoutRedis(t *testing.T) {
	h := newTestHandler(&fakeSearchService{})

	c := app.NewContext(16)
	c.Params = param.Params{{Key: "job_id", Value: "job-1"}}
	c.Request.SetRequestURI("/api/v1/jobs/job-1/rank/status")
	h.HandleCheckRankStatus(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	body := decodeBody(t, c)
	assert.Equal(t, "not_started", body["status"])
}
