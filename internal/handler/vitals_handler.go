package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/service/vitals"
)

// VitalsHandler 生命体征处理器
type VitalsHandler struct{}

// NewVitalsHandler 创建生命体征处理器
func NewVitalsHandler() *VitalsHandler {
	return &VitalsHandler{}
}

// EvaluateAlerts 根据一次体征记录返回告警
// @Summary      体征告警
// @Tags         生命体征
// @Accept       json
// @Produce      json
// @Param        body  body      model.VitalsSnapshot  true "体征记录"
// @Success      200  {object}  SuccessResponse  "告警列表"
// @Router       /vitals/alerts [post]
func (h *VitalsHandler) EvaluateAlerts(c *gin.Context) {
	var snapshot model.VitalsSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		BadRequest(c, err.Error())
		return
	}
	Success(c, gin.H{"alerts": vitals.Evaluate(snapshot)})
}
