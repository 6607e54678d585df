package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus 分析任务状态
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// JobTrigger 任务来源
type JobTrigger string

const (
	TriggerUpload JobTrigger = "upload"
	TriggerManual JobTrigger = "manual"
)

// AnalysisJob 持久化的分析任务，worker 通过租约领取
// 每个文件同一时刻最多一个 queued/running 任务，由部分唯一索引保证
type AnalysisJob struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FileID         string     `gorm:"type:varchar(36);index;uniqueIndex:idx_analysis_jobs_active,where:status = 'queued' OR status = 'running';not null" json:"file_id"`
	UserID         string     `gorm:"type:varchar(64);not null" json:"user_id"`
	Trigger        JobTrigger `gorm:"type:varchar(20)" json:"trigger"`
	Status         JobStatus  `gorm:"type:varchar(20);index;not null;default:queued" json:"status"`
	Attempts       int        `gorm:"default:0" json:"attempts"`
	LeaseOwner     string     `gorm:"type:varchar(64)" json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `gorm:"index" json:"lease_expires_at,omitempty"`
	LastError      string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (j *AnalysisJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = JobQueued
	}
	return nil
}

// Reclaimed 租约过期后被重新领取
func (j *AnalysisJob) Reclaimed() bool {
	return j.Attempts > 1
}
