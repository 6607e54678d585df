package handler

import (
	"github.com/ashwinyue/report-insight/internal/service/report"
)

// Handlers 处理器集合
type Handlers struct {
	File    *FileHandler
	Insight *InsightHandler
	Vitals  *VitalsHandler
	System  *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(reportSvc *report.Service, maxUploadSize int64, system *SystemHandler) *Handlers {
	return &Handlers{
		File:    NewFileHandler(reportSvc, maxUploadSize),
		Insight: NewInsightHandler(reportSvc),
		Vitals:  NewVitalsHandler(),
		System:  system,
	}
}
