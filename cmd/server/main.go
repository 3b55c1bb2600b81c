package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/api/router"
	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	applogger "resume-match-go/internal/logger"
	"resume-match-go/internal/search"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	applogger.Init(applogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(applogger.Logger))
	glog.Info("配置与日志初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}
	defer func() {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFlush()
		if err := shutdownTracing(flushCtx); err != nil {
			glog.Warnf("链路追踪关闭失败: %v", err)
		}
	}()

	storageManager, err := storage.NewStorage(cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	embedder, err := embedding.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		glog.Fatalf("初始化Embedder失败: %v", err)
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
	embeddingManager, err := embedding.NewManager(embedder, storageManager.MySQL, applogger.Logger, managerOpts...)
	if err != nil {
		glog.Fatalf("初始化向量缓存管理器失败: %v", err)
	}
	glog.Info("向量缓存管理器初始化成功")

	dict := search.NewDictionary(cfg.Dictionary.Categories, cfg.Dictionary.Regions)
	weights := search.Weights{
		Keyword:  cfg.Search.Weights.Keyword,
		Semantic: cfg.Search.Weights.Semantic,
		Location: cfg.Search.Weights.Location,
	}
	searchService := search.NewService(storageManager.MySQL, embeddingManager, dict, weights, applogger.Logger)
	if storageManager.Redis != nil {
		searchService.SetVectorCache(storageManager.Redis, cfg.Aliyun.Embedding.Model)
	}
	glog.Info("混合检索服务初始化成功")

	searchHandler := handler.NewSearchHandler(cfg, storageManager, searchService, applogger.Logger)
	ingestHandler := handler.NewIngestHandler(storageManager, applogger.Logger)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, searchHandler, ingestHandler)
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
