// Package report 报告文件的增删查、分析触发与审阅
// 分析本身由 queue 中的 worker 异步执行，这里只负责入队
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashwinyue/report-insight/internal/metrics"
	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/repository"
	"github.com/ashwinyue/report-insight/internal/service/fetch"
	"github.com/ashwinyue/report-insight/internal/service/file"
	"github.com/ashwinyue/report-insight/internal/service/ratelimit"
)

var (
	// ErrFileNotFound 文件不存在或不属于当前用户
	ErrFileNotFound = errors.New("file not found")
	// ErrInsightNotFound 文件尚无分析结果
	ErrInsightNotFound = errors.New("insight not found")
	// ErrAlreadyProcessed 文件已完成分析
	ErrAlreadyProcessed = errors.New("file already processed")
	// ErrAnalysisInProgress 文件已有排队或执行中的分析
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrInvalidInput 请求参数不合法
	ErrInvalidInput = errors.New("invalid input")
)

// Throttle 按用户限制分析触发频率
type Throttle interface {
	Check(ctx context.Context, userID string) error
}

// Notifier 新任务入队后唤醒 worker
type Notifier interface {
	Notify()
}

// UploadRequest 上传请求；Reader 与 URL 二选一
type UploadRequest struct {
	UserID      string
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	URL         string

	ReportType  string
	TestDate    *time.Time
	LabName     string
	DoctorName  string
	Description string
}

// Service 报告服务
type Service struct {
	files    repository.FileStore
	insights repository.InsightStore
	jobs     repository.JobStore
	storage  file.Storage
	throttle Throttle
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewService 创建报告服务，throttle 和 notifier 可以为 nil
func NewService(
	files repository.FileStore,
	insights repository.InsightStore,
	jobs repository.JobStore,
	storage file.Storage,
	throttle Throttle,
	notifier Notifier,
	m *metrics.Metrics,
) *Service {
	if m == nil {
		m = metrics.Default()
	}
	return &Service{
		files:    files,
		insights: insights,
		jobs:     jobs,
		storage:  storage,
		throttle: throttle,
		notifier: notifier,
		metrics:  m,
	}
}

// Upload 保存文件并在同一事务中创建文件记录和分析任务
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*model.FileRecord, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if req.ReportType == "" {
		return nil, fmt.Errorf("%w: report type is required", ErrInvalidInput)
	}

	record := &model.FileRecord{
		UserID:      req.UserID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.Size,
		ReportType:  req.ReportType,
		TestDate:    req.TestDate,
		LabName:     req.LabName,
		DoctorName:  req.DoctorName,
		Description: req.Description,
	}

	switch {
	case req.URL != "":
		if err := fetch.ValidateRemote(req.URL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if record.FileName == "" {
			record.FileName = fileNameFromURL(req.URL)
		}
		category, err := Categorize(record.ContentType, record.FileName)
		if err != nil {
			return nil, err
		}
		record.Category = category
		record.Locator = req.URL
		record.StorageType = string(file.StorageTypeURL)

	case req.Reader != nil:
		if s.storage == nil {
			return nil, errors.New("file storage not configured")
		}
		category, err := Categorize(record.ContentType, record.FileName)
		if err != nil {
			return nil, err
		}
		key, err := s.storage.Save(ctx, &file.SaveRequest{
			FileName:    req.FileName,
			ContentType: req.ContentType,
			Size:        req.Size,
			Reader:      req.Reader,
			UserID:      req.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("save file: %w", err)
		}
		record.Category = category
		record.Locator = key
		record.StorageType = string(s.storage.Type())

	default:
		return nil, fmt.Errorf("%w: file or url is required", ErrInvalidInput)
	}

	job := &model.AnalysisJob{Trigger: model.TriggerUpload}
	if err := s.files.CreateWithJob(ctx, record, job); err != nil {
		if record.StorageType != string(file.StorageTypeURL) {
			if delErr := s.storage.Delete(ctx, record.Locator); delErr != nil {
				log.Warn().Err(delErr).Str("key", record.Locator).Msg("failed to remove orphaned upload")
			}
		}
		return nil, fmt.Errorf("create file record: %w", err)
	}

	s.notify()
	log.Info().
		Str("file_id", record.ID).
		Str("user_id", record.UserID).
		Str("category", string(record.Category)).
		Str("storage", record.StorageType).
		Msg("report uploaded, analysis queued")
	return record, nil
}

// Get 获取当前用户的文件
func (s *Service) Get(ctx context.Context, userID, id string) (*model.FileRecord, error) {
	f, err := s.files.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

// List 分页列出当前用户的文件，page 从 1 开始
func (s *Service) List(ctx context.Context, userID string, page, pageSize int) ([]*model.FileRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.files.ListByUser(ctx, userID, (page-1)*pageSize, pageSize)
}

// Delete 删除文件记录、洞察、任务以及存储中的文件
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	f, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.files.DeleteWithInsight(ctx, f.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}

	if f.StorageType != string(file.StorageTypeURL) && s.storage != nil {
		if err := s.storage.Delete(ctx, f.Locator); err != nil {
			log.Warn().Err(err).Str("file_id", f.ID).Msg("failed to delete stored file")
		}
	}
	return nil
}

// GetInsight 获取文件的分析结果
func (s *Service) GetInsight(ctx context.Context, userID, fileID string) (*model.Insight, error) {
	if _, err := s.Get(ctx, userID, fileID); err != nil {
		return nil, err
	}
	insight, err := s.insights.GetByFileID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInsightNotFound
		}
		return nil, err
	}
	return insight, nil
}

// Reanalyze 手动重新触发分析
// completed 的文件不再分析；failed 的文件先重置为 pending 再入队
func (s *Service) Reanalyze(ctx context.Context, userID, fileID string) (*model.AnalysisJob, error) {
	f, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	switch f.ProcessingStatus {
	case model.StatusCompleted:
		return nil, ErrAlreadyProcessed
	case model.StatusProcessing:
		return nil, ErrAnalysisInProgress
	}

	active, err := s.jobs.HasActive(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("check active jobs: %w", err)
	}
	if active {
		return nil, ErrAnalysisInProgress
	}

	// 重置状态、插入任务和扣减限流额度在同一事务内完成，并发触发只有一个能入队
	job := &model.AnalysisJob{
		UserID:  f.UserID,
		Trigger: model.TriggerManual,
	}
	err = s.files.RequeueWithJob(ctx, f.ID, f.ProcessingStatus, job, s.admit(userID))
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrActiveJob), errors.Is(err, repository.ErrStatusConflict):
		return nil, ErrAnalysisInProgress
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		s.metrics.ThrottleRejections.Inc()
		return nil, err
	default:
		return nil, fmt.Errorf("enqueue analysis: %w", err)
	}

	s.notify()
	log.Info().Str("file_id", f.ID).Str("job_id", job.ID).Msg("re-analysis queued")
	return job, nil
}

// Review 文件所有者标记洞察已审阅，其他用户的洞察视为不存在
func (s *Service) Review(ctx context.Context, userID, insightID string, reviewed bool, notes string) (*model.Insight, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	insight, err := s.insights.MarkReviewed(ctx, insightID, userID, strings.TrimSpace(notes), reviewed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInsightNotFound
		}
		return nil, err
	}
	return insight, nil
}

// admit 返回入队事务提交前的限流检查
func (s *Service) admit(userID string) func(ctx context.Context) error {
	if s.throttle == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return s.throttle.Check(ctx, userID)
	}
}

func (s *Service) notify() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

// Categorize 根据内容类型（缺失时用扩展名）判断文件类别
func Categorize(contentType, fileName string) (model.FileCategory, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediaType
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(path.Ext(fileName)))
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			ct = mediaType
		}
	}

	switch {
	case strings.HasPrefix(ct, "image/"):
		return model.CategoryImage, nil
	case ct == "application/pdf",
		ct == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		strings.HasPrefix(ct, "text/plain"):
		return model.CategoryDocument, nil
	}

	// mime 表里不一定有 docx
	if strings.EqualFold(path.Ext(fileName), ".docx") {
		return model.CategoryDocument, nil
	}
	return "", fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, contentType)
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}
