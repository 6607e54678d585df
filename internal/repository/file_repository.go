package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ashwinyue/report-insight/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict 条件更新未命中（状态已被其他流程修改）
	ErrStatusConflict = errors.New("processing status conflict")
	// ErrActiveJob 文件已有排队或运行中的任务
	ErrActiveJob = errors.New("file already has an active job")
)

// FileRepository 报告文件仓库
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建文件仓库
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// CreateWithJob 在同一事务中创建文件记录和分析任务
func (r *FileRepository) CreateWithJob(ctx context.Context, file *model.FileRecord, job *model.AnalysisJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("create file record: %w", err)
		}
		job.FileID = file.ID
		job.UserID = file.UserID
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("create analysis job: %w", err)
		}
		return nil
	})
}

// RequeueWithJob 在同一事务中重新入队：from 为 failed 时先条件重置为 pending，再插入任务，最后调用 admit
// 已有活跃任务返回 ErrActiveJob，状态已变返回 ErrStatusConflict；admit 返回错误时整体回滚
func (r *FileRepository) RequeueWithJob(
	ctx context.Context,
	fileID string,
	from model.ProcessingStatus,
	job *model.AnalysisJob,
	admit func(ctx context.Context) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if from != model.StatusPending {
			res := tx.Model(&model.FileRecord{}).
				Where("id = ? AND processing_status = ?", fileID, from).
				Updates(map[string]interface{}{
					"processing_status": model.StatusPending,
					"last_error":        "",
				})
			if res.Error != nil {
				return fmt.Errorf("reset status: %w", res.Error)
			}
			if res.RowsAffected != 1 {
				return ErrStatusConflict
			}
		}

		job.FileID = fileID
		if err := NewJobRepository(tx).Create(ctx, job); err != nil {
			return err
		}
		if admit != nil {
			return admit(ctx)
		}
		return nil
	})
}

// GetByID 根据ID获取文件
func (r *FileRepository) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	var file model.FileRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &file, nil
}

// GetByIDForUser 获取属于指定用户的文件
func (r *FileRepository) GetByIDForUser(ctx context.Context, id, userID string) (*model.FileRecord, error) {
	var file model.FileRecord
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&file).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &file, nil
}

// ListByUser 分页列出用户的文件
func (r *FileRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.FileRecord, int64, error) {
	var (
		files []*model.FileRecord
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.FileRecord{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&files).Error
	return files, total, err
}

// TransitionStatus 条件更新状态：仅当当前状态为 from 时更新为 to
// 返回是否命中
func (r *FileRepository) TransitionStatus(ctx context.Context, id string, from, to model.ProcessingStatus) (bool, error) {
	updates := map[string]interface{}{"processing_status": to}
	if to == model.StatusProcessing {
		updates["analysis_attempts"] = gorm.Expr("analysis_attempts + 1")
	}
	if to == model.StatusPending {
		updates["last_error"] = ""
	}

	res := r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed processing → failed，记录失败原因
func (r *FileRepository) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ? AND processing_status = ?", id, model.StatusProcessing).
		Updates(map[string]interface{}{
			"processing_status": model.StatusFailed,
			"last_error":        reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompleteWithInsight 原子地写入洞察并将文件标记为 completed
// 文件必须处于 processing 且尚未关联洞察，否则整体回滚
func (r *FileRepository) CompleteWithInsight(ctx context.Context, fileID string, insight *model.Insight) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(insight).Error; err != nil {
			return fmt.Errorf("create insight: %w", err)
		}

		res := tx.Model(&model.FileRecord{}).
			Where("id = ? AND processing_status = ? AND insight_id IS NULL", fileID, model.StatusProcessing).
			Updates(map[string]interface{}{
				"processing_status": model.StatusCompleted,
				"insight_id":        insight.ID,
				"last_error":        "",
			})
		if res.Error != nil {
			return fmt.Errorf("link insight: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrStatusConflict
		}
		return nil
	})
}

// DeleteWithInsight 删除文件记录及其关联的洞察和任务
func (r *FileRepository) DeleteWithInsight(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", id).Delete(&model.Insight{}).Error; err != nil {
			return fmt.Errorf("delete insight: %w", err)
		}
		if err := tx.Where("file_id = ?", id).Delete(&model.AnalysisJob{}).Error; err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.FileRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete file record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
