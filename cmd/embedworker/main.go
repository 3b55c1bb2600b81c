package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	applogger "resume-match-go/internal/logger"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/worker"

	"github.com/spf13/pflag"
)

// 独立进程运行的后台向量刷新器：消费RabbitMQ上的刷新事件，
// 周期扫描超龄向量并补发事件。
func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	applogger.Init(applogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	log := applogger.Logger.With().Str("service", "embedworker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化链路追踪失败")
	}
	defer func() {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFlush()
		_ = shutdownTracing(flushCtx)
	}()

	storageManager, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	embedder, err := embedding.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化Embedder失败")
	}

	managerOpts := []embedding.ManagerOption{
		embedding.WithFreshnessWindow(time.Duration(cfg.Search.FreshnessDays) * 24 * time.Hour),
		embedding.WithBatchSize(cfg.Search.EmbeddingBatchSize),
		embedding.WithRetryPolicy(embedding.RetryPolicy{
			MaxAttempts: cfg.Search.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Search.Retry.BaseDelaySecond) * time.Second,
			Multiplier:  cfg.Search.Retry.Multiplier,
			MaxDelay:    time.Duration(cfg.Search.Retry.MaxDelaySecond) * time.Second,
			Jitter:      cfg.Search.Retry.Jitter,
		}),
	}
	if storageManager.Redis != nil {
		managerOpts = append(managerOpts, embedding.WithLocker(storageManager.Redis))
	}
	embeddingManager, err := embedding.NewManager(embedder, storageManager.MySQL, log, managerOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化向量缓存管理器失败")
	}

	embeddingWorker, err := worker.NewEmbeddingWorker(storageManager, embeddingManager, log)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化向量刷新器失败")
	}

	log.Info().Msg("向量刷新器启动")
	if err := embeddingWorker.Run(ctx, cfg.RabbitMQ.WorkerCount); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("向量刷新器退出")
	}
	log.Info().Msg("向量刷新器已停止")
}
