package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FindingStatus 检查指标状态
type FindingStatus string

const (
	FindingNormal   FindingStatus = "normal"
	FindingHigh     FindingStatus = "high"
	FindingLow      FindingStatus = "low"
	FindingAbnormal FindingStatus = "abnormal"
	FindingCritical FindingStatus = "critical"
)

// Valid 是否为允许的取值
func (s FindingStatus) Valid() bool {
	switch s {
	case FindingNormal, FindingHigh, FindingLow, FindingAbnormal, FindingCritical:
		return true
	}
	return false
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid 是否为允许的取值
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// FollowUpTimeframe 复诊时间
type FollowUpTimeframe string

const (
	FollowUpOneWeek     FollowUpTimeframe = "1-week"
	FollowUpTwoWeeks    FollowUpTimeframe = "2-weeks"
	FollowUpOneMonth    FollowUpTimeframe = "1-month"
	FollowUpThreeMonths FollowUpTimeframe = "3-months"
	FollowUpSixMonths   FollowUpTimeframe = "6-months"
	FollowUpOneYear     FollowUpTimeframe = "1-year"
)

// Valid 是否为允许的取值
func (f FollowUpTimeframe) Valid() bool {
	switch f {
	case FollowUpOneWeek, FollowUpTwoWeeks, FollowUpOneMonth,
		FollowUpThreeMonths, FollowUpSixMonths, FollowUpOneYear:
		return true
	}
	return false
}

// Bilingual 英文 / 乌尔都语双语文本
type Bilingual struct {
	English string `json:"english"`
	Urdu    string `json:"urdu"`
}

// BilingualList 双语列表
type BilingualList struct {
	English []string `json:"english"`
	Urdu    []string `json:"urdu"`
}

// KeyFinding 关键检查结果
type KeyFinding struct {
	Parameter    string        `json:"parameter"`
	Value        string        `json:"value"`
	Unit         string        `json:"unit,omitempty"`
	Status       FindingStatus `json:"status"`
	NormalRange  string        `json:"normal_range,omitempty"`
	Significance *Bilingual    `json:"significance,omitempty"`
}

// RiskFactor 风险因素
type RiskFactor struct {
	Factor      string    `json:"factor"`
	Level       RiskLevel `json:"level"`
	Description Bilingual `json:"description"`
}

// Insight 一次分析的结构化结果，与 FileRecord 一一对应
type Insight struct {
	ID                string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FileID            string                            `gorm:"type:varchar(36);uniqueIndex;not null" json:"file_id"`
	UserID            string                            `gorm:"type:varchar(64);index;not null" json:"user_id"`
	SourceText        string                            `gorm:"type:text" json:"-"`
	Summary           datatypes.JSONType[Bilingual]     `json:"summary"`
	KeyFindings       datatypes.JSONSlice[KeyFinding]   `json:"key_findings"`
	Recommendations   datatypes.JSONType[BilingualList] `json:"recommendations"`
	DoctorQuestions   datatypes.JSONType[BilingualList] `json:"doctor_questions"`
	RiskFactors       datatypes.JSONSlice[RiskFactor]   `json:"risk_factors"`
	FollowUpRequired  bool                              `json:"follow_up_required"`
	FollowUpTimeframe FollowUpTimeframe                 `gorm:"type:varchar(20)" json:"follow_up_timeframe,omitempty"`
	Confidence        int                               `gorm:"default:0" json:"confidence"`
	ProcessingTimeMs  int64                             `gorm:"default:0" json:"processing_time_ms"`
	AIModel           string                            `gorm:"size:100" json:"ai_model"`
	UsedFallback      bool                              `gorm:"default:false" json:"used_fallback"`
	Degraded          bool                              `gorm:"default:false" json:"degraded"`
	IsReviewed        bool                              `gorm:"default:false" json:"is_reviewed"`
	ReviewedBy        *string                           `gorm:"type:varchar(64)" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time                        `json:"reviewed_at,omitempty"`
	ReviewNotes       string                            `gorm:"type:text" json:"review_notes,omitempty"`
	CreatedAt         time.Time                         `json:"created_at"`
	UpdatedAt         time.Time                         `json:"updated_at"`
}

// TableName 指定表名
func (Insight) TableName() string {
	return "insights"
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (i *Insight) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
