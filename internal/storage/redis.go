package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound key不存在时返回，包装底层的 redis.Nil
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("resume-match-go/storage/redis")

// Redis操作前缀采样率配置，锁操作留高采样率便于排查争用
var redisKeySamplingRates = map[string]float64{
	"app:search:session:": 0.1,
	"app:search:lock:":    0.5,
	"app:job:vector:":     0.1,
	"app:embedding:lock:": 0.5,
}

var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}

	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}

	// 默认采样率5%
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis 包装go-redis客户端
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
	}

	client := redis.NewClient(opt)

	// OpenTelemetry钩子记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("注册Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis失败 (%s): %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// SetJobVector 将岗位查询向量和模型版本存入Redis HASH
func (r *Redis) SetJobVector(ctx context.Context, jobID string, vector []float64, modelVersion string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	cacheKey := fmt.Sprintf(constants.KeyJobVector, jobID)

	var span trace.Span
	if shouldSampleRedisOp(cacheKey) {
		ctx, span = redisTracer.Start(ctx, "Redis.SetJobVector", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "HSET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(cacheKey)),
			attribute.Int("vector.dimensions", len(vector)),
		)
	}

	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("序列化向量失败: %w", err)
	}

	pipe := r.Client.Pipeline()
	pipe.HSet(ctx, cacheKey, "vector", vectorJSON)
	pipe.HSet(ctx, cacheKey, "model_version", modelVersion)
	pipe.Expire(ctx, cacheKey, 24*time.Hour)

	if _, err = pipe.Exec(ctx); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("设置岗位向量缓存失败: %w", err)
	}
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
	return nil
}

// GetJobVector 从Redis HASH中获取岗位查询向量和模型版本
func (r *Redis) GetJobVector(ctx context.Context, jobID string) ([]float64, string, error) {
	if r.Client == nil {
		return nil, "", fmt.Errorf("redis客户端未初始化")
	}

	cacheKey := fmt.Sprintf(constants.KeyJobVector, jobID)

	var span trace.Span
	if shouldSampleRedisOp(cacheKey) {
		ctx, span = redisTracer.Start(ctx, "Redis.GetJobVector", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "HMGET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(cacheKey)),
		)
	}

	vals, err := r.Client.HMGet(ctx, cacheKey, "vector", "model_version").Result()
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, "", err
	}
	if span != nil {
		span.SetAttributes(attribute.Bool("db.redis.key_exists", len(vals) >= 2 && vals[0] != nil))
		span.SetStatus(codes.Ok, "")
	}
	if len(vals) < 2 || vals[0] == nil {
		return nil, "", fmt.Errorf("未找到岗位向量缓存，jobID=%s: %w", jobID, ErrNotFound)
	}

	vectorJSON, ok := vals[0].(string)
	if !ok || vectorJSON == "" {
		return nil, "", fmt.Errorf("向量缓存格式错误")
	}
	var vector []float64
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		return nil, "", fmt.Errorf("反序列化向量失败: %w", err)
	}

	modelVersion, _ := vals[1].(string)
	return vector, modelVersion, nil
}

// CachedRankedItem 会话缓存里的单条排序结果，候选人明细由调用方回源补齐
type CachedRankedItem struct {
	CandidateID string                `json:"candidate_id"`
	SearchScore float64               `json:"search_score"`
	Components  types.ComponentScores `json:"component_scores"`
}

// CacheRankedResults 将完整的排序结果缓存到ZSET，分数即综合分，
// ZREVRANGE可直接按排名分页取出
func (r *Redis) CacheRankedResults(ctx context.Context, jobID string, results []*types.RankedCandidate, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	if len(results) == 0 {
		return nil // 不缓存空结果
	}

	sessionKey := fmt.Sprintf(constants.KeySearchSession, jobID)

	members := make([]redis.Z, 0, len(results))
	for i, res := range results {
		if res == nil || res.Candidate == nil {
			continue
		}
		item := CachedRankedItem{
			CandidateID: res.Candidate.CandidateID,
			SearchScore: res.SearchScore,
			Components:  res.Components,
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("序列化排序结果失败: %w", err)
		}
		members = append(members, redis.Z{
			// 倒序排名作为分数，ZREVRANGE按原始排名取出；
			// 综合分可能并列，排名保证顺序稳定
			Score:  float64(len(results) - i),
			Member: string(data),
		})
	}

	pipe := r.Client.Pipeline()
	pipe.Del(ctx, sessionKey)
	pipe.ZAdd(ctx, sessionKey, members...)
	pipe.Expire(ctx, sessionKey, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedRankedResults 从ZSET中分页获取排序结果
func (r *Redis) GetCachedRankedResults(ctx context.Context, jobID string, cursor, limit int64) (items []CachedRankedItem, totalCount int64, err error) {
	ctx, span := redisTracer.Start(ctx, "Redis.GetCachedRankedResults", trace.WithAttributes(
		semconv.DBSystemRedis,
		attribute.String("job_id", jobID),
		attribute.Int64("redis.cursor", cursor),
		attribute.Int64("redis.limit", limit),
	))
	defer span.End()

	sessionKey := fmt.Sprintf(constants.KeySearchSession, jobID)

	pipe := r.Client.Pipeline()
	countCmd := pipe.ZCard(ctx, sessionKey)
	rangeCmd := pipe.ZRevRange(ctx, sessionKey, cursor, cursor+limit-1)
	_, err = pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		span.RecordError(err)
		return nil, 0, err
	}

	raw, err := rangeCmd.Result()
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("获取会话缓存失败: %w", err)
	}

	items = make([]CachedRankedItem, 0, len(raw))
	for _, member := range raw {
		var item CachedRankedItem
		if err := json.Unmarshal([]byte(member), &item); err != nil {
			// 脏数据跳过，不让整页失败
			continue
		}
		items = append(items, item)
	}

	totalCount, err = countCmd.Result()
	if err != nil {
		return items, 0, err
	}

	return items, totalCount, nil
}

// AcquireLock 尝试获取一个分布式锁，返回持有者标识；未获得锁时返回空串
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	// SETNX保证原子性
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseLock 释放一个分布式锁，Lua脚本保证只释放自己持有的锁
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}

	return false, nil // 锁不存在或不属于当前持有者
}

// InvalidateSearchSession 删除岗位的排序会话缓存和查询向量缓存，
// 岗位数据变更后调用，两者都由岗位字段派生
func (r *Redis) InvalidateSearchSession(ctx context.Context, jobID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	sessionKey := fmt.Sprintf(constants.KeySearchSession, jobID)
	vectorKey := fmt.Sprintf(constants.KeyJobVector, jobID)
	return r.Client.Del(ctx, sessionKey, vectorKey).Err()
}
