package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-match-go/internal/embedding"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var workerTracer = otel.Tracer("resume-match-go/worker/embedding")

// 过期向量扫描的默认参数
const (
	defaultSweepInterval  = 1 * time.Hour
	defaultSweepBatchSize = 200
)

// EmbeddingWorker 后台向量刷新器：消费RabbitMQ上的刷新事件，
// 通过 embedding.Manager 重新生成并写回向量；同时周期扫描
// 数据库里超龄的候选人，补发刷新事件。
type EmbeddingWorker struct {
	storage *storage.Storage
	manager *embedding.Manager
	logger  zerolog.Logger

	sweepInterval  time.Duration
	sweepBatchSize int
}

// Option EmbeddingWorker的可选配置
type Option func(*EmbeddingWorker)

// WithSweepInterval 覆盖过期扫描周期
func WithSweepInterval(d time.Duration) Option {
	return func(w *EmbeddingWorker) {
		if d > 0 {
			w.sweepInterval = d
		}
	}
}

// WithSweepBatchSize 覆盖单次扫描条数上限
func WithSweepBatchSize(n int) Option {
	return func(w *EmbeddingWorker) {
		if n > 0 {
			w.sweepBatchSize = n
		}
	}
}

// NewEmbeddingWorker 创建后台向量刷新器
func NewEmbeddingWorker(st *storage.Storage, manager *embedding.Manager, logger zerolog.Logger, opts ...Option) (*EmbeddingWorker, error) {
	if st == nil || st.RabbitMQ == nil {
		return nil, fmt.Errorf("RabbitMQ未初始化，无法启动向量刷新器")
	}
	if manager == nil {
		return nil, fmt.Errorf("embedding.Manager 不能为空")
	}

	w := &EmbeddingWorker{
		storage:        st,
		manager:        manager,
		logger:         logger.With().Str("component", "embedding_worker").Logger(),
		sweepInterval:  defaultSweepInterval,
		sweepBatchSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run 启动消费与周期扫描，阻塞到 ctx 取消
func (w *EmbeddingWorker) Run(ctx context.Context, prefetchCount int) error {
	if err := w.storage.RabbitMQ.SetupEmbeddingRefreshTopology(); err != nil {
		return fmt.Errorf("声明刷新事件拓扑失败: %w", err)
	}

	queue := w.storage.RabbitMQ.Config().RefreshQueue
	stopCh, err := w.storage.RabbitMQ.StartConsumer(queue, prefetchCount, w.handleMessage)
	if err != nil {
		return fmt.Errorf("启动刷新事件消费者失败: %w", err)
	}
	w.logger.Info().Str("queue", queue).Int("prefetch", prefetchCount).Msg("向量刷新消费者已启动")

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(stopCh)
			return ctx.Err()
		case <-ticker.C:
			if err := w.SweepStale(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("过期向量扫描失败")
			}
		}
	}
}

// handleMessage 处理单条刷新事件。返回true则ack；
// 实体不存在按成功处理（事件已过时），读库失败则nack重新入队。
func (w *EmbeddingWorker) handleMessage(body []byte) bool {
	ctx, span := workerTracer.Start(context.Background(), "EmbeddingWorker.handleMessage",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var msg storage.EmbeddingRefreshMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 消息格式错误，重新入队也无法处理
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		w.logger.Error().Err(err).Msg("刷新事件反序列化失败，丢弃")
		return true
	}

	span.SetAttributes(
		attribute.String("messaging.message_id", msg.MessageID),
		attribute.String("refresh.kind", msg.Kind),
		attribute.String("refresh.entity_id", msg.EntityID),
	)

	switch msg.Kind {
	case storage.RefreshKindCandidate:
		cand, err := w.storage.MySQL.GetCandidate(ctx, msg.EntityID)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			tracing.RecordRabbitMQNack(span, msg.MessageID, "读取候选人失败")
			w.logger.Warn().Err(err).Str("candidate_id", msg.EntityID).Msg("读取候选人失败，消息重新入队")
			return false
		}
		if cand == nil {
			span.SetStatus(codes.Ok, "candidate gone")
			return true
		}
		w.manager.EnsureCandidateEmbedding(ctx, cand)

	case storage.RefreshKindJob:
		job, err := w.storage.MySQL.GetJob(ctx, msg.EntityID)
		if err != nil {
			if errors.Is(err, storage.ErrJobNotFound) {
				span.SetStatus(codes.Ok, "job gone")
				return true
			}
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			tracing.RecordRabbitMQNack(span, msg.MessageID, "读取岗位失败")
			w.logger.Warn().Err(err).Str("job_id", msg.EntityID).Msg("读取岗位失败，消息重新入队")
			return false
		}
		w.manager.EnsureJobEmbedding(ctx, job)

	default:
		w.logger.Warn().Str("kind", msg.Kind).Msg("未知的刷新事件类型，丢弃")
	}

	span.SetStatus(codes.Ok, "")
	return true
}

// SweepStale 扫描超过新鲜度窗口的候选人并补发刷新事件
func (w *EmbeddingWorker) SweepStale(ctx context.Context) error {
	ctx, span := workerTracer.Start(ctx, "EmbeddingWorker.SweepStale")
	defer span.End()

	olderThan := time.Now().Add(-w.manager.FreshnessWindow())
	ids, err := w.storage.MySQL.ListStaleCandidateIDs(ctx, olderThan, w.sweepBatchSize)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}
	span.SetAttributes(attribute.Int("sweep.stale_count", len(ids)))

	for _, id := range ids {
		msg := storage.EmbeddingRefreshMessage{
			MessageID:  uuid.NewString(),
			Kind:       storage.RefreshKindCandidate,
			EntityID:   id,
			Reason:     "stale_sweep",
			EnqueuedAt: time.Now(),
		}
		if err := w.storage.RabbitMQ.PublishEmbeddingRefresh(ctx, msg); err != nil {
			tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeRabbitMQ,
				attribute.String("refresh.entity_id", id))
			return fmt.Errorf("发布刷新事件失败: %w", err)
		}
	}

	if len(ids) > 0 {
		w.logger.Info().Int("count", len(ids)).Msg("已补发过期向量刷新事件")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
