package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailverify/backend/internal/config"
	"mailverify/backend/internal/logger"
	"mailverify/backend/internal/monitoring"
	"mailverify/backend/internal/pool"
	"mailverify/backend/internal/service"
	"mailverify/backend/internal/storage/memory"
	httptransport "mailverify/backend/internal/transport/http"
	"mailverify/backend/internal/websocket"
)

// main 是邮箱批量验证后端的程序入口。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	logCfg := logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	log.Info("starting mailverify API server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层（内存存储，任务按保留窗口清理）
	store := memory.NewStore(cfg.Jobs.Retention)
	log.Info("using memory storage", zap.Duration("retention", cfg.Jobs.Retention))

	// 初始化监控
	metrics := monitoring.NewMetrics()
	health := monitoring.NewHealthChecker(store, log)

	// 初始化服务层
	verifierClient := service.NewVerifierClient(cfg.Verifier.APIURL, cfg.Verifier.Timeout, log, metrics)
	driver := service.NewVerificationDriver(store, verifierClient,
		cfg.Verifier.BatchSize, cfg.Verifier.BatchDelay, log, metrics)
	jobService := service.NewJobService(store,
		cfg.Upload.MaxFileSize, cfg.Upload.EmailColumnIndex, log, metrics)

	log.Info("verifier configuration",
		zap.String("api_url", cfg.Verifier.APIURL),
		zap.Int("batch_size", cfg.Verifier.BatchSize),
		zap.Duration("batch_delay", cfg.Verifier.BatchDelay),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动验证驱动器协程池
	workerPool := pool.NewWorkerPool(cfg.Pool.Workers, cfg.Pool.QueueSize, log)
	workerPool.Start(ctx)

	// 创建进度 WebSocket 推送器
	progressHub := websocket.NewProgressHub(jobService, cfg.CORS.AllowedOrigins, log)

	// 创建 HTTP 路由
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		JobService:  jobService,
		Driver:      driver,
		Pool:        workerPool,
		Metrics:     metrics,
		Health:      health,
		ProgressHub: progressHub,
		Logger:      log,
		RootCtx:     ctx,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// HTTP 服务器
	g.Go(func() error {
		log.Info("API server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// 保留清理协程：定期删除超过保留窗口的任务
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Jobs.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				removed := store.CleanupOldJobs()
				if removed > 0 {
					log.Info("retention cleanup", zap.Int("removed", removed))
					metrics.RecordJobsCleaned(removed)
				}
				metrics.SetActiveJobs(store.GetJobCount())
			}
		}
	})

	// 优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		workerPool.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", zap.Error(err))
		return
	}
	log.Info("server stopped cleanly")
}
