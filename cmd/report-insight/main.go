package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ashwinyue/report-insight/internal/config"
	"github.com/ashwinyue/report-insight/internal/database"
	"github.com/ashwinyue/report-insight/internal/handler"
	"github.com/ashwinyue/report-insight/internal/logger"
	"github.com/ashwinyue/report-insight/internal/metrics"
	"github.com/ashwinyue/report-insight/internal/repository"
	"github.com/ashwinyue/report-insight/internal/router"
	"github.com/ashwinyue/report-insight/internal/service/analysis"
	"github.com/ashwinyue/report-insight/internal/service/callback"
	"github.com/ashwinyue/report-insight/internal/service/fetch"
	"github.com/ashwinyue/report-insight/internal/service/file"
	"github.com/ashwinyue/report-insight/internal/service/queue"
	"github.com/ashwinyue/report-insight/internal/service/ratelimit"
	"github.com/ashwinyue/report-insight/internal/service/report"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg)

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init database")
	}
	defer db.Close()
	log.Info().Str("database", cfg.Database.DBName).Msg("database connected")

	// 初始化 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// 文件存储
	storage, err := file.NewFromConfig(&cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}

	m := metrics.Default()
	repos := repository.NewRepositories(db.DB)

	// 分析流水线
	fetchOpts := fetch.Options{
		Timeout:  cfg.Analysis.FetchTimeoutDuration(),
		MaxBytes: cfg.Analysis.MaxFetchBytes,
	}
	fetcher := fetch.NewRouter(
		fetch.NewHTTPFetcher(nil, fetchOpts),
		fetch.NewStorageFetcher(storage, fetchOpts),
	)

	var chatModel model.BaseChatModel
	cm, modelName, err := analysis.NewChatModel(context.Background(), &cfg.AI)
	if err != nil {
		log.Warn().Err(err).Msg("chat model unavailable, every analysis will use the fallback payload")
	} else {
		chatModel = cm
	}
	invoker := analysis.NewInvoker(chatModel, modelName,
		analysis.WithTimeout(cfg.AI.ModelTimeout()),
		analysis.WithRateLimit(cfg.AI.RequestsPerSecond, cfg.AI.Burst),
		analysis.WithCallbacks(callback.NewLogger(cfg.App.Debug)),
	)

	coordinator := analysis.NewCoordinator(
		repos.File,
		fetcher,
		analysis.NewDocumentExtractor(cfg.Analysis.MaxDocumentChars),
		invoker,
		analysis.NewNormalizer(cfg.Analysis.SummaryMaxChars),
		m,
	)

	pool := queue.NewPool(repos.Job, coordinator, queue.Options{
		Concurrency:       cfg.Worker.Concurrency,
		PollInterval:      cfg.Worker.PollIntervalDuration(),
		LeaseDuration:     cfg.Worker.LeaseDurationValue(),
		HeartbeatInterval: cfg.Worker.HeartbeatIntervalDuration(),
	}, m)
	pool.Start(context.Background())

	limiter := ratelimit.NewLimiter(redisClient, "report-insight:reanalyze",
		cfg.RateLimit.ReanalyzeLimit, cfg.RateLimit.ReanalyzeWindowDuration())
	reportSvc := report.NewService(repos.File, repos.Insight, repos.Job, storage, limiter, pool, m)

	system := handler.NewSystemHandler(repos.Job, cfg.App.Version, map[string]handler.HealthCheck{
		"database": db.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	handlers := handler.NewHandlers(reportSvc, cfg.Server.MaxUploadSize, system)

	// 初始化路由
	r := router.SetupRouter(handlers, router.Options{JWTSecret: cfg.Auth.JWTSecret})

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 启动服务器
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// 优雅关闭：先停止接收请求，再等待进行中的分析任务
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	pool.Stop()

	log.Info().Msg("server exited")
}
