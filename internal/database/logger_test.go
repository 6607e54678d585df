package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/report-insight/internal/model"
)

func openLogged(t *testing.T, level gormlogger.LogLevel, slow time.Duration) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := NewGormLogger(zerolog.New(&buf).Level(zerolog.DebugLevel), level, slow)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "log.db")), Options(l))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	buf.Reset()
	return db, &buf
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]interface{}
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line is not json: %q", line)
		}
		out = append(out, e)
	}
	return out
}

func TestGormLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		slow      time.Duration
		wantLevel string
		wantMsg   string
	}{
		{name: "info traces every query", level: gormlogger.Info, wantLevel: "debug", wantMsg: "query"},
		{name: "warn reports slow queries", level: gormlogger.Warn, slow: time.Nanosecond, wantLevel: "warn", wantMsg: "slow query"},
		{name: "warn hides fast queries", level: gormlogger.Warn, slow: time.Hour},
		{name: "silent", level: gormlogger.Silent, slow: time.Nanosecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, buf := openLogged(t, tt.level, tt.slow)

			var count int64
			if err := db.Model(&model.FileRecord{}).Count(&count).Error; err != nil {
				t.Fatal(err)
			}

			got := entries(t, buf)
			if tt.wantMsg == "" {
				if len(got) != 0 {
					t.Fatalf("expected no logs, got %v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("log entries = %d, want 1: %v", len(got), got)
			}
			if got[0]["level"] != tt.wantLevel || got[0]["message"] != tt.wantMsg {
				t.Errorf("entry = %v", got[0])
			}
			if sql, _ := got[0]["sql"].(string); !strings.Contains(sql, "file_records") {
				t.Errorf("sql = %q", sql)
			}
		})
	}
}

func TestGormLogger_ErrorsAndExpectedMisses(t *testing.T) {
	db, buf := openLogged(t, gormlogger.Warn, 0)

	var file model.FileRecord
	err := db.Where("id = ?", "missing").First(&file).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("record not found should not be logged: %s", buf.String())
	}

	job := &model.AnalysisJob{FileID: "file-1", UserID: "user-1"}
	if err := db.Create(job).Error; err != nil {
		t.Fatal(err)
	}
	dup := &model.AnalysisJob{FileID: "file-1", UserID: "user-1"}
	if err := db.Create(dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate Create() error = %v, want ErrDuplicatedKey", err)
	}
	if buf.Len() != 0 {
		t.Errorf("duplicate key should not be logged as an error: %s", buf.String())
	}

	if err := db.Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatal("expected error for missing table")
	}
	got := entries(t, buf)
	if len(got) != 1 || got[0]["level"] != "error" || got[0]["message"] != "query failed" {
		t.Errorf("entries = %v", got)
	}
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	base := NewGormLogger(zerolog.Nop(), gormlogger.Warn, 0)
	info := base.LogMode(gormlogger.Info).(*GormLogger)
	if info.level != gormlogger.Info || base.level != gormlogger.Warn {
		t.Errorf("LogMode mutated the original: base=%v info=%v", base.level, info.level)
	}
}
