// Package logger 初始化全局 zerolog 日志
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ashwinyue/report-insight/internal/config"
)

// Init 根据配置设置全局日志
func Init(cfg *config.Config) zerolog.Logger {
	return Setup(cfg.Log.Level, cfg.Log.Format, os.Stdout, cfg.App.Name)
}

// Setup 设置全局 logger 并返回
func Setup(level, format string, out io.Writer, app string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).With().Timestamp().Str("app", app).Logger()
	log.Logger = l
	return l
}

// Component 返回带组件名的子 logger
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
