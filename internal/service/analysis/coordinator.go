// Package analysis 报告分析流水线：下载 → 调用模型 → 归一化 → 持久化，并驱动文件状态机
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	applog "github.com/ashwinyue/report-insight/internal/logger"
	"github.com/ashwinyue/report-insight/internal/metrics"
	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/repository"
	"github.com/ashwinyue/report-insight/internal/service/fetch"
)

var (
	// ErrNotPending 文件不处于可分析状态（已被其他任务处理或已是终态）
	ErrNotPending = errors.New("file is not pending analysis")
	// ErrFileNotFound 文件记录不存在
	ErrFileNotFound = errors.New("file record not found")
)

// ModelInvoker 模型调用能力
type ModelInvoker interface {
	Invoke(ctx context.Context, req *InvokeRequest) *InvokeResult
	ModelName() string
}

// Coordinator 状态协调器，文件的 processing_status 只由它推进
type Coordinator struct {
	files      repository.FileStore
	fetcher    fetch.Fetcher
	extractor  TextExtractor
	invoker    ModelInvoker
	normalizer *Normalizer
	metrics    *metrics.Metrics
}

// NewCoordinator 创建状态协调器
func NewCoordinator(
	files repository.FileStore,
	fetcher fetch.Fetcher,
	extractor TextExtractor,
	invoker ModelInvoker,
	normalizer *Normalizer,
	m *metrics.Metrics,
) *Coordinator {
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultSummaryMaxChars)
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Coordinator{
		files:      files,
		fetcher:    fetcher,
		extractor:  extractor,
		invoker:    invoker,
		normalizer: normalizer,
		metrics:    m,
	}
}

// Process 执行一个分析任务，直到文件进入 completed 或 failed
// 返回 ErrNotPending 表示任务被跳过；其他错误表示文件已被标记为 failed
func (c *Coordinator) Process(ctx context.Context, job *model.AnalysisJob) (err error) {
	logger := applog.Component("coordinator").With().
		Str("job_id", job.ID).
		Str("file_id", job.FileID).
		Int("attempt", job.Attempts).
		Logger()

	file, err := c.begin(ctx, job)
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			c.metrics.AnalysisOutcomes.WithLabelValues("skipped").Inc()
			logger.Info().Err(err).Msg("analysis skipped")
		}
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panic: %v", r)
			logger.Error().Interface("panic", r).Msg("analysis pipeline panicked")
			c.fail(ctx, logger, file.ID, err)
		}
	}()

	req, sourceText := c.loadContent(ctx, logger, file)

	start := time.Now()
	res := c.invoker.Invoke(ctx, req)
	c.observe("invoke", start)
	if res.UsedFallback {
		c.metrics.ModelCalls.WithLabelValues("fallback").Inc()
		logger.Warn().AnErr("cause", res.Err).Msg("model unavailable, using fallback payload")
	} else {
		c.metrics.ModelCalls.WithLabelValues("success").Inc()
	}

	norm := c.normalizer.Normalize(res.Text)
	c.metrics.NormalizeResults.WithLabelValues(string(norm.Kind)).Inc()

	insight := BuildInsight(norm.Payload, JobContext{
		FileID:           file.ID,
		UserID:           file.UserID,
		SourceText:       sourceText,
		ProcessingTimeMs: res.ProcessingTimeMs,
		Model:            res.Model,
		UsedFallback:     res.UsedFallback,
		Degraded:         norm.Degraded(),
	})

	start = time.Now()
	persistErr := c.files.CompleteWithInsight(ctx, file.ID, insight)
	c.observe("persist", start)
	if persistErr != nil {
		err = fmt.Errorf("persist insight: %w", persistErr)
		c.fail(ctx, logger, file.ID, err)
		return err
	}

	c.metrics.AnalysisOutcomes.WithLabelValues(string(model.StatusCompleted)).Inc()
	logger.Info().
		Str("insight_id", insight.ID).
		Int("confidence", insight.Confidence).
		Bool("used_fallback", insight.UsedFallback).
		Bool("degraded", insight.Degraded).
		Int64("processing_time_ms", insight.ProcessingTimeMs).
		Msg("analysis completed")
	return nil
}

// begin pending → processing 的条件更新；租约过期后被重新领取的任务可以接续 processing 状态
func (c *Coordinator) begin(ctx context.Context, job *model.AnalysisJob) (*model.FileRecord, error) {
	moved, err := c.files.TransitionStatus(ctx, job.FileID, model.StatusPending, model.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("transition to processing: %w", err)
	}

	file, err := c.files.GetByID(ctx, job.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		if moved {
			c.fail(ctx, applog.Component("coordinator"), job.FileID, fmt.Errorf("load file: %w", err))
		}
		return nil, fmt.Errorf("load file: %w", err)
	}

	if moved {
		return file, nil
	}
	if file.ProcessingStatus == model.StatusProcessing && job.Reclaimed() {
		return file, nil
	}
	return nil, fmt.Errorf("%w: status %s", ErrNotPending, file.ProcessingStatus)
}

// loadContent 下载文件内容；任何失败都替换为元数据描述，流水线继续
func (c *Coordinator) loadContent(ctx context.Context, logger zerolog.Logger, file *model.FileRecord) (*InvokeRequest, string) {
	req := &InvokeRequest{
		ReportType: file.ReportType,
		LabName:    file.LabName,
		DoctorName: file.DoctorName,
		TestDate:   file.TestDate,
		FileName:   file.FileName,
	}
	metadata := MetadataDescription(file.FileName, file.ReportType, file.LabName, file.DoctorName, file.Description, file.TestDate)

	start := time.Now()
	data, err := c.fetcher.Fetch(ctx, file.Locator, file.Category)
	c.observe("fetch", start)
	if err != nil {
		kind := string(fetch.KindTransport)
		var fe *fetch.Error
		if errors.As(err, &fe) {
			kind = string(fe.Kind)
		}
		c.metrics.FetchFailures.WithLabelValues(kind).Inc()
		logger.Warn().Err(err).Str("kind", kind).Msg("fetch failed, falling back to metadata")
		req.Text = metadata
		return req, metadata
	}

	if file.Category == model.CategoryImage {
		req.Binary = data
		req.MIMEType = DetectImageMIME(data)
		return req, fmt.Sprintf("[image report: %s]", file.FileName)
	}

	if c.extractor == nil {
		req.Text = metadata
		return req, metadata
	}

	start = time.Now()
	text, err := c.extractor.Extract(ctx, data, file.FileName, file.ContentType)
	c.observe("extract", start)
	if err != nil {
		logger.Warn().Err(err).Msg("text extraction failed, falling back to metadata")
		req.Text = metadata
		return req, metadata
	}
	req.Text = text
	return req, text
}

// fail processing → failed，失败原因写入 last_error
func (c *Coordinator) fail(ctx context.Context, logger zerolog.Logger, fileID string, cause error) {
	moved, err := c.files.MarkFailed(ctx, fileID, cause.Error())
	if err != nil {
		logger.Error().Err(err).AnErr("cause", cause).Msg("failed to mark file as failed")
		return
	}
	if !moved {
		logger.Warn().AnErr("cause", cause).Msg("file left processing before it could be marked failed")
		return
	}
	c.metrics.AnalysisOutcomes.WithLabelValues(string(model.StatusFailed)).Inc()
	logger.Error().Err(cause).Msg("analysis failed")
}

func (c *Coordinator) observe(stage string, start time.Time) {
	c.metrics.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
