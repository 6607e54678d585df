package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/report-insight/internal/database"
	"github.com/ashwinyue/report-insight/internal/model"
)

// NewTestDB 创建迁移好的 SQLite 测试数据库，测试结束后自动关闭
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	silent := database.NewGormLogger(zerolog.Nop(), gormlogger.Silent, 0)
	db, err := gorm.Open(sqlite.Open(dsn), database.Options(silent))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	// SQLite 单写者，串行化连接避免 database is locked
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// NewFileRecord 构造一个待分析的文件记录
func NewFileRecord(userID, locator string, category model.FileCategory) *model.FileRecord {
	testDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &model.FileRecord{
		UserID:      userID,
		FileName:    "report.png",
		ContentType: "image/png",
		FileSize:    128,
		StorageType: "local",
		Locator:     locator,
		Category:    category,
		ReportType:  "blood-test",
		TestDate:    &testDate,
		LabName:     "City Lab",
		DoctorName:  "Dr. Khan",
	}
}
