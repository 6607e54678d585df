package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/repository"
)

// HealthCheck 依赖的连通性检查
type HealthCheck func(ctx context.Context) error

// SystemHandler 系统处理器
type SystemHandler struct {
	jobs    repository.JobStore
	checks  map[string]HealthCheck
	version string
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(jobs repository.JobStore, version string, checks map[string]HealthCheck) *SystemHandler {
	return &SystemHandler{jobs: jobs, checks: checks, version: version}
}

// Health 健康检查，任一依赖不可用时返回 503
// @Summary      健康检查
// @Tags         系统
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "正常"
// @Failure      503  {object}  map[string]interface{}  "依赖不可用"
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	body := gin.H{"status": "ok", "version": h.version, "dependencies": status}
	if !healthy {
		body["status"] = "degraded"
		c.JSON(503, body)
		return
	}
	c.JSON(200, body)
}

// QueueStats 分析任务队列统计
// @Summary      队列统计
// @Tags         系统
// @Produce      json
// @Success      200  {object}  SuccessResponse  "各状态任务数"
// @Router       /system/queue [get]
func (h *SystemHandler) QueueStats(c *gin.Context) {
	stats := gin.H{}
	for _, status := range []model.JobStatus{model.JobQueued, model.JobRunning, model.JobDone, model.JobFailed} {
		n, err := h.jobs.CountByStatus(c.Request.Context(), status)
		if err != nil {
			Error(c, err)
			return
		}
		stats[string(status)] = n
	}
	Success(c, stats)
}
