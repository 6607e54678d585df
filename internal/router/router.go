package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashwinyue/report-insight/internal/handler"
	"github.com/ashwinyue/report-insight/internal/middleware"
)

// Options 路由配置
type Options struct {
	JWTSecret string
	// Gatherer 为空时使用默认注册表
	Gatherer prometheus.Gatherer
}

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, opts Options) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())

	// 健康检查与指标
	r.GET("/health", h.System.Health)
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(opts.JWTSecret))
	{
		// Files 报告文件
		files := v1.Group("/files")
		{
			files.POST("", h.File.UploadFile)
			files.GET("", h.File.ListFiles)
			files.GET("/:id", h.File.GetFile)
			files.DELETE("/:id", h.File.DeleteFile)
			files.GET("/:id/insight", h.Insight.GetFileInsight)
			files.POST("/:id/analyze", h.File.AnalyzeFile)
		}

		// Insights 审阅
		insights := v1.Group("/insights")
		{
			insights.PUT("/:id/review", h.Insight.ReviewInsight)
		}

		// Vitals 生命体征
		v1.POST("/vitals/alerts", h.Vitals.EvaluateAlerts)

		// System 系统
		v1.GET("/system/queue", h.System.QueueStats)
	}

	return r
}
