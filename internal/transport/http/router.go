package httptransport

import (
	"context"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailverify/backend/internal/config"
	"mailverify/backend/internal/middleware"
	"mailverify/backend/internal/monitoring"
	"mailverify/backend/internal/pool"
	"mailverify/backend/internal/service"
	"mailverify/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	JobService  *service.JobService
	Driver      *service.VerificationDriver
	Pool        *pool.WorkerPool
	Metrics     *monitoring.Metrics
	Health      *monitoring.HealthChecker
	ProgressHub *websocket.ProgressHub
	Logger      *zap.Logger
	RootCtx     context.Context // 后台验证任务的根上下文
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewVerifyHandler(deps.JobService, deps.Driver, deps.Pool, deps.RootCtx, deps.Logger)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/healthz", gin.WrapF(deps.Health.LiveEndpoint()))
		router.GET("/readyz", gin.WrapF(deps.Health.ReadyEndpoint()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		verifyRoutes := v1.Group("/verify")
		{
			// 上传路由单独限制请求体大小：文件上限之外预留 multipart 头开销
			uploadLimit := deps.Config.Upload.MaxFileSize + 64*1024
			verifyRoutes.POST("/upload", middleware.BodySizeLimit(uploadLimit), handler.Upload)
			verifyRoutes.POST("/start", middleware.BodySizeLimit(4*1024), handler.Start)
			verifyRoutes.GET("/progress", handler.Progress)
			verifyRoutes.GET("/download", handler.Download)

			if deps.ProgressHub != nil {
				verifyRoutes.GET("/progress/ws", deps.ProgressHub.Serve)
			}
		}
	}

	return router
}
