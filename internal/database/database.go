// Package database 负责 PostgreSQL 连接、连接池与表结构迁移
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/report-insight/internal/config"
	applog "github.com/ashwinyue/report-insight/internal/logger"
	"github.com/ashwinyue/report-insight/internal/model"
)

const pingTimeout = 5 * time.Second

// DB 数据库封装
type DB struct {
	*gorm.DB
	logger zerolog.Logger
}

// New 连接数据库、配置连接池并迁移表结构
func New(cfg *config.Config) (*DB, error) {
	logger := applog.Component("database")

	level := gormlogger.Warn
	if cfg.App.Debug {
		level = gormlogger.Info
	}
	slow := time.Duration(cfg.Database.SlowQueryMs) * time.Millisecond

	gdb, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), Options(NewGormLogger(applog.Component("gorm"), level, slow)))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db := &DB{DB: gdb, logger: logger}
	if err := db.configurePool(&cfg.Database); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	start := time.Now()
	if err := AutoMigrate(gdb); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("dbname", cfg.Database.DBName).
		Int("max_open_conns", cfg.Database.MaxOpenConns).
		Dur("migrate", time.Since(start)).
		Msg("database ready")
	return db, nil
}

// Options 服务与测试共用的 gorm 配置：UTC 时间，驱动错误翻译为 gorm 哨兵错误
func Options(l gormlogger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         l,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (db *DB) configurePool(cfg *config.DatabaseConfig) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)
	return nil
}

// Close 关闭连接池
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	db.logger.Info().Msg("database closed")
	return nil
}

// Ping 健康检查
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate 迁移全部模型，包括活跃任务的部分唯一索引
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(model.AllModels...)
}
