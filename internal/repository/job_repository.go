package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/report-insight/internal/model"
)

// 同一轮领取中被其他 worker 抢先时的重试次数
const claimRetries = 3

// JobRepository 分析任务仓库（持久化队列）
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建任务仓库
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create 入队；文件已有排队或运行中的任务时返回 ErrActiveJob
func (r *JobRepository) Create(ctx context.Context, job *model.AnalysisJob) error {
	err := r.db.WithContext(ctx).Create(job).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrActiveJob
	}
	return err
}

// GetByID 根据ID获取任务
func (r *JobRepository) GetByID(ctx context.Context, id string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// Claim 领取一个可执行的任务：排队中的任务，或租约已过期的运行中任务
// 没有可领取任务时返回 nil, nil
func (r *JobRepository) Claim(ctx context.Context, owner string, lease time.Duration) (*model.AnalysisJob, error) {
	for i := 0; i < claimRetries; i++ {
		now := time.Now().UTC()

		var candidate model.AnalysisJob
		err := r.db.WithContext(ctx).
			Where("status = ? OR (status = ? AND lease_expires_at < ?)", model.JobQueued, model.JobRunning, now).
			Order("created_at ASC").
			First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		expires := now.Add(lease)
		res := r.db.WithContext(ctx).Model(&model.AnalysisJob{}).
			Where("id = ? AND (status = ? OR (status = ? AND lease_expires_at < ?))",
				candidate.ID, model.JobQueued, model.JobRunning, now).
			Updates(map[string]interface{}{
				"status":           model.JobRunning,
				"lease_owner":      owner,
				"lease_expires_at": expires,
				"attempts":         gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			candidate.Status = model.JobRunning
			candidate.LeaseOwner = owner
			candidate.LeaseExpiresAt = &expires
			candidate.Attempts++
			return &candidate, nil
		}
	}
	return nil, nil
}

// Heartbeat 续约，返回租约是否仍归属 owner
func (r *JobRepository) Heartbeat(ctx context.Context, id, owner string, lease time.Duration) (bool, error) {
	expires := time.Now().UTC().Add(lease)
	res := r.db.WithContext(ctx).Model(&model.AnalysisJob{}).
		Where("id = ? AND lease_owner = ? AND status = ?", id, owner, model.JobRunning).
		Update("lease_expires_at", expires)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Finish 结束任务并释放租约
func (r *JobRepository) Finish(ctx context.Context, id, owner string, status model.JobStatus, lastErr string) error {
	res := r.db.WithContext(ctx).Model(&model.AnalysisJob{}).
		Where("id = ? AND lease_owner = ?", id, owner).
		Updates(map[string]interface{}{
			"status":           status,
			"last_error":       lastErr,
			"lease_owner":      "",
			"lease_expires_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// HasActive 文件是否有排队中或租约有效的任务
func (r *JobRepository) HasActive(ctx context.Context, fileID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AnalysisJob{}).
		Where("file_id = ? AND (status = ? OR (status = ? AND lease_expires_at >= ?))",
			fileID, model.JobQueued, model.JobRunning, time.Now().UTC()).
		Count(&count).Error
	return count > 0, err
}

// CountByStatus 统计某状态的任务数
func (r *JobRepository) CountByStatus(ctx context.Context, status model.JobStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AnalysisJob{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
