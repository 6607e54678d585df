package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/report-insight/internal/model"
)

// InsightRepository 分析洞察仓库
type InsightRepository struct {
	db *gorm.DB
}

// NewInsightRepository 创建洞察仓库
func NewInsightRepository(db *gorm.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// GetByID 根据ID获取洞察
func (r *InsightRepository) GetByID(ctx context.Context, id string) (*model.Insight, error) {
	var insight model.Insight
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&insight).Error; err != nil {
		return nil, notFound(err)
	}
	return &insight, nil
}

// GetByFileID 获取文件对应的洞察
func (r *InsightRepository) GetByFileID(ctx context.Context, fileID string) (*model.Insight, error) {
	var insight model.Insight
	if err := r.db.WithContext(ctx).Where("file_id = ?", fileID).First(&insight).Error; err != nil {
		return nil, notFound(err)
	}
	return &insight, nil
}

// MarkReviewed 更新属于 userID 的洞察的审阅字段，洞察的其余字段不可变
// 洞察不存在或不属于该用户时返回 ErrNotFound
func (r *InsightRepository) MarkReviewed(ctx context.Context, id, userID, notes string, reviewed bool) (*model.Insight, error) {
	updates := map[string]interface{}{
		"is_reviewed":  reviewed,
		"review_notes": notes,
	}
	if reviewed {
		now := time.Now().UTC()
		updates["reviewed_by"] = userID
		updates["reviewed_at"] = &now
	} else {
		updates["reviewed_by"] = nil
		updates["reviewed_at"] = nil
	}

	res := r.db.WithContext(ctx).Model(&model.Insight{}).Where("id = ? AND user_id = ?", id, userID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
