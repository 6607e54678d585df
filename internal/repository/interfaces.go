// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"
	"time"

	"github.com/ashwinyue/report-insight/internal/model"
)

// FileStore 文件记录数据访问接口
type FileStore interface {
	CreateWithJob(ctx context.Context, file *model.FileRecord, job *model.AnalysisJob) error
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*model.FileRecord, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.FileRecord, int64, error)

	// 状态机：所有状态变更都是条件更新
	TransitionStatus(ctx context.Context, id string, from, to model.ProcessingStatus) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	CompleteWithInsight(ctx context.Context, fileID string, insight *model.Insight) error
	RequeueWithJob(ctx context.Context, fileID string, from model.ProcessingStatus, job *model.AnalysisJob, admit func(ctx context.Context) error) error

	DeleteWithInsight(ctx context.Context, id string) error
}

// InsightStore 洞察数据访问接口
type InsightStore interface {
	GetByID(ctx context.Context, id string) (*model.Insight, error)
	GetByFileID(ctx context.Context, fileID string) (*model.Insight, error)
	MarkReviewed(ctx context.Context, id, userID, notes string, reviewed bool) (*model.Insight, error)
}

// JobStore 分析任务（持久化队列）数据访问接口
type JobStore interface {
	Create(ctx context.Context, job *model.AnalysisJob) error
	GetByID(ctx context.Context, id string) (*model.AnalysisJob, error)
	Claim(ctx context.Context, owner string, lease time.Duration) (*model.AnalysisJob, error)
	Heartbeat(ctx context.Context, id, owner string, lease time.Duration) (bool, error)
	Finish(ctx context.Context, id, owner string, status model.JobStatus, lastErr string) error
	HasActive(ctx context.Context, fileID string) (bool, error)
	CountByStatus(ctx context.Context, status model.JobStatus) (int64, error)
}

var (
	_ FileStore    = (*FileRepository)(nil)
	_ InsightStore = (*InsightRepository)(nil)
	_ JobStore     = (*JobRepository)(nil)
)
