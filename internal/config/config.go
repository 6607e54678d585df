package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Storage   StorageConfig
	Analysis  AnalysisConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Log       LogConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host          string
	Port          int
	Mode          string
	ReadTimeout   int
	WriteTimeout  int
	MaxUploadSize int64 // 字节
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	SlowQueryMs  int // 超过该耗时的 SQL 以 warn 级别记录，0 表示不记录
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AIConfig AI配置
type AIConfig struct {
	Provider          string
	OpenAI            OpenAIConfig
	Alibaba           AlibabaConfig
	DeepSeek          DeepSeekConfig
	Temperature       float32
	Timeout           int     // 单次模型调用超时（秒）
	RequestsPerSecond float64 // 全局模型调用速率
	Burst             int
}

// OpenAIConfig OpenAI配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AlibabaConfig 阿里云配置
type AlibabaConfig struct {
	AccessKeySecret string
	Model           string
}

// DeepSeekConfig DeepSeek配置
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	Type  string // local, minio
	Local LocalStorageConfig
	MinIO MinIOStorageConfig
}

// LocalStorageConfig 本地存储配置
type LocalStorageConfig struct {
	BasePath  string
	URLPrefix string
}

// MinIOStorageConfig MinIO 配置
type MinIOStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLPrefix string
}

// AnalysisConfig 分析流水线配置
type AnalysisConfig struct {
	FetchTimeout     int   // 下载文件超时（秒）
	MaxFetchBytes    int64 // 下载文件大小上限
	MaxDocumentChars int   // 送入模型的文档文本上限
	SummaryMaxChars  int   // 降级摘要截断长度
}

// WorkerConfig 任务队列 worker 配置
type WorkerConfig struct {
	Concurrency       int
	PollInterval      int // 毫秒
	LeaseDuration     int // 秒
	HeartbeatInterval int // 秒
}

// RateLimitConfig 敏感操作限流配置
type RateLimitConfig struct {
	ReanalyzeLimit  int
	ReanalyzeWindow int // 秒
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string // console, json
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("REPORT_INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelTimeout 模型调用超时
func (c *AIConfig) ModelTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// FetchTimeoutDuration 文件下载超时
func (c *AnalysisConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// PollIntervalDuration 轮询间隔
func (c *WorkerConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// LeaseDurationValue 租约时长
func (c *WorkerConfig) LeaseDurationValue() time.Duration {
	return time.Duration(c.LeaseDuration) * time.Second
}

// HeartbeatIntervalDuration 心跳间隔
func (c *WorkerConfig) HeartbeatIntervalDuration() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// ReanalyzeWindowDuration 限流窗口
func (c *RateLimitConfig) ReanalyzeWindowDuration() time.Duration {
	return time.Duration(c.ReanalyzeWindow) * time.Second
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "report-insight")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.maxUploadSize", 10<<20)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "report_insight")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)
	v.SetDefault("database.slowQueryMs", 200)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.timeout", 120)
	v.SetDefault("ai.requestsPerSecond", 2)
	v.SetDefault("ai.burst", 4)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.basePath", "./data/files")
	v.SetDefault("storage.local.urlPrefix", "/files")

	// Analysis
	v.SetDefault("analysis.fetchTimeout", 30)
	v.SetDefault("analysis.maxFetchBytes", 20<<20)
	v.SetDefault("analysis.maxDocumentChars", 12000)
	v.SetDefault("analysis.summaryMaxChars", 500)

	// Worker
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.pollInterval", 1000)
	v.SetDefault("worker.leaseDuration", 300)
	v.SetDefault("worker.heartbeatInterval", 60)

	// RateLimit
	v.SetDefault("rateLimit.reanalyzeLimit", 5)
	v.SetDefault("rateLimit.reanalyzeWindow", 3600)

	// Auth
	v.SetDefault("auth.jwtSecret", "")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
