package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/report-insight/internal/middleware"
	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/service/report"
)

// FileHandler 报告文件处理器
type FileHandler struct {
	reportSvc     *report.Service
	maxUploadSize int64
}

// NewFileHandler 创建文件处理器
func NewFileHandler(reportSvc *report.Service, maxUploadSize int64) *FileHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	return &FileHandler{
		reportSvc:     reportSvc,
		maxUploadSize: maxUploadSize,
	}
}

// FileStatus 文件及其分析状态
type FileStatus struct {
	*model.FileRecord
	IsProcessed bool `json:"is_processed"`
}

func newFileStatus(f *model.FileRecord) FileStatus {
	return FileStatus{FileRecord: f, IsProcessed: f.IsProcessed()}
}

// UploadFile 上传报告并排队分析
// @Summary      上传报告
// @Description  上传报告文件或提交公网 URL，创建文件记录并排队分析
// @Tags         报告文件
// @Accept       multipart/form-data
// @Produce      json
// @Param        file        formData file   false "报告文件（与 url 二选一）"
// @Param        url         formData string false "报告的 http(s) 地址（与 file 二选一）"
// @Param        reportType  formData string true  "报告类型"
// @Param        testDate    formData string false "检查日期 YYYY-MM-DD"
// @Param        labName     formData string false "检验机构"
// @Param        doctorName  formData string false "医生"
// @Param        description formData string false "描述"
// @Success      201  {object}  SuccessResponse  "已排队"
// @Failure      400  {object}  ErrorResponse    "参数错误"
// @Failure      401  {object}  ErrorResponse    "未认证"
// @Router       /files [post]
func (h *FileHandler) UploadFile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	testDate, err := parseTestDate(c.PostForm("testDate"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	req := &report.UploadRequest{
		UserID:      userID,
		URL:         strings.TrimSpace(c.PostForm("url")),
		ReportType:  strings.TrimSpace(c.PostForm("reportType")),
		TestDate:    testDate,
		LabName:     c.PostForm("labName"),
		DoctorName:  c.PostForm("doctorName"),
		Description: c.PostForm("description"),
	}

	if req.URL == "" {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			BadRequest(c, "file is required: "+err.Error())
			return
		}
		if fileHeader.Size > h.maxUploadSize {
			BadRequest(c, fmt.Sprintf("file exceeds %d bytes", h.maxUploadSize))
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			Error(c, err)
			return
		}
		defer f.Close()

		req.FileName = fileHeader.Filename
		req.ContentType = fileHeader.Header.Get("Content-Type")
		req.Size = fileHeader.Size
		req.Reader = f
	}

	record, err := h.reportSvc.Upload(c.Request.Context(), req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, newFileStatus(record))
}

// ListFiles 列出当前用户的文件
// @Summary      文件列表
// @Tags         报告文件
// @Produce      json
// @Param        page       query  int  false "页码" default(1)
// @Param        page_size  query  int  false "每页数量" default(20)
// @Success      200  {object}  SuccessResponse  "文件列表"
// @Router       /files [get]
func (h *FileHandler) ListFiles(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	files, total, err := h.reportSvc.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		Error(c, err)
		return
	}

	items := make([]FileStatus, 0, len(files))
	for _, f := range files {
		items = append(items, newFileStatus(f))
	}
	SuccessWithPagination(c, items, total, page, pageSize)
}

// GetFile 获取文件状态
// @Summary      获取文件
// @Tags         报告文件
// @Produce      json
// @Param        id   path      string  true "文件ID"
// @Success      200  {object}  SuccessResponse  "文件及分析状态"
// @Failure      404  {object}  ErrorResponse    "文件不存在"
// @Router       /files/{id} [get]
func (h *FileHandler) GetFile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	record, err := h.reportSvc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, newFileStatus(record))
}

// DeleteFile 删除文件及其洞察
// @Summary      删除文件
// @Tags         报告文件
// @Param        id   path      string  true "文件ID"
// @Success      204  "删除成功"
// @Failure      404  {object}  ErrorResponse  "文件不存在"
// @Router       /files/{id} [delete]
func (h *FileHandler) DeleteFile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	if err := h.reportSvc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// AnalyzeFile 手动重新触发分析
// @Summary      重新分析
// @Description  failed 的文件重置为 pending 后入队；completed 或已在分析中返回 409
// @Tags         报告文件
// @Produce      json
// @Param        id   path      string  true "文件ID"
// @Success      202  {object}  SuccessResponse  "已入队"
// @Failure      404  {object}  ErrorResponse    "文件不存在"
// @Failure      409  {object}  ErrorResponse    "已完成或分析中"
// @Failure      429  {object}  ErrorResponse    "触发过于频繁"
// @Router       /files/{id}/analyze [post]
func (h *FileHandler) AnalyzeFile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		Unauthorized(c, "user not authenticated")
		return
	}

	job, err := h.reportSvc.Reanalyze(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Accepted(c, gin.H{
		"job_id":  job.ID,
		"file_id": job.FileID,
		"status":  job.Status,
	})
}

func parseTestDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid testDate %q, expected YYYY-MM-DD", s)
}
