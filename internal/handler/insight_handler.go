package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/report-insight/internal/middleware"
	"github.com/ashwinyue/report-insight/internal/service/report"
)

// InsightHandler 分析结果处理器
type InsightHandler struct {
	reportSvc *report.Service
}

// NewInsightHandler 创建洞察处理器
func NewInsightHandler(reportSvc *report.Service) *InsightHandler {
	return &InsightHandler{reportSvc: reportSvc}
}

// ReviewRequest 审阅请求，isReviewed 缺省为 true
type ReviewRequest struct {
	IsReviewed *bool  `json:"isReviewed"`
	Notes      string `json:"notes"`
}

// GetFileInsight 获取文件的分析结果
// @Summary      获取分析结果
// @Tags         分析结果
// @Produce      json
// @Param        id   path      string  true "文件ID"
// @Success      200  {object}  SuccessResponse  "分析结果"
// @Failure      404  {object}  ErrorResponse    "文件不存在或尚未分析完成"
// @Router       /files/{id}/insight [get]
func (h *InsightHandler) GetFileInsight(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	insight, err := h.reportSvc.GetInsight(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, insight)
}

// ReviewInsight 文件所有者标记洞察已审阅
// @Summary      审阅分析结果
// @Tags         分析结果
// @Accept       json
// @Produce      json
// @Param        id    path      string         true "洞察ID"
// @Param        body  body      ReviewRequest  true "审阅内容"
// @Success      200  {object}  SuccessResponse  "审阅后的分析结果"
// @Failure      404  {object}  ErrorResponse    "洞察不存在"
// @Router       /insights/{id}/review [put]
func (h *InsightHandler) ReviewInsight(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	reviewed := true
	if req.IsReviewed != nil {
		reviewed = *req.IsReviewed
	}

	insight, err := h.reportSvc.Review(c.Request.Context(), userID, c.Param("id"), reviewed, req.Notes)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, insight)
}
