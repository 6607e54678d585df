package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessingStatus 文件分析状态
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"    // 已上传，等待分析
	StatusProcessing ProcessingStatus = "processing" // 分析中
	StatusCompleted  ProcessingStatus = "completed"  // 分析完成（终态）
	StatusFailed     ProcessingStatus = "failed"     // 分析失败（终态）
)

// FileCategory 文件二进制类别
type FileCategory string

const (
	CategoryImage    FileCategory = "image"
	CategoryDocument FileCategory = "document"
)

// FileRecord 上传的医疗报告文件
type FileRecord struct {
	ID               string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           string           `gorm:"type:varchar(64);index;not null" json:"user_id"`
	FileName         string           `gorm:"size:255" json:"file_name"`
	ContentType      string           `gorm:"size:100" json:"content_type"`
	FileSize         int64            `gorm:"default:0" json:"file_size"`
	StorageType      string           `gorm:"size:20" json:"storage_type"` // local, minio, url
	Locator          string           `gorm:"size:500;not null" json:"locator"`
	Category         FileCategory     `gorm:"type:varchar(20);not null" json:"category"`
	ReportType       string           `gorm:"size:64" json:"report_type"`
	TestDate         *time.Time       `json:"test_date,omitempty"`
	LabName          string           `gorm:"size:255" json:"lab_name,omitempty"`
	DoctorName       string           `gorm:"size:255" json:"doctor_name,omitempty"`
	Description      string           `gorm:"type:text" json:"description,omitempty"`
	ProcessingStatus ProcessingStatus `gorm:"type:varchar(20);index;not null;default:pending" json:"processing_status"`
	InsightID        *string          `gorm:"type:varchar(36)" json:"insight_id,omitempty"`
	AnalysisAttempts int              `gorm:"default:0" json:"analysis_attempts"`
	LastError        string           `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (FileRecord) TableName() string {
	return "file_records"
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (f *FileRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.ProcessingStatus == "" {
		f.ProcessingStatus = StatusPending
	}
	return nil
}

// IsProcessed 分析已完成且已关联洞察
func (f *FileRecord) IsProcessed() bool {
	return f.ProcessingStatus == StatusCompleted && f.InsightID != nil
}
