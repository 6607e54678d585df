package file

import (
	"context"
	"fmt"
	"io"

	"github.com/ashwinyue/report-insight/internal/config"
)

// Storage 报告文件存储接口
type Storage interface {
	// Save 保存文件，返回存储键
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get 按存储键读取文件内容
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除文件，不存在时不报错
	Delete(ctx context.Context, key string) error
	// GetURL 获取文件的访问URL
	GetURL(key string) string
	// Type 存储类型
	Type() StorageType
}

// SaveRequest 保存文件请求
type SaveRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	UserID      string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinIO StorageType = "minio"
	// StorageTypeURL 外部 http(s) 地址，不经过本服务存储
	StorageTypeURL StorageType = "url"
)

// NewFromConfig 根据配置创建存储
func NewFromConfig(cfg *config.StorageConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.Local.BasePath, cfg.Local.URLPrefix)

	case StorageTypeMinIO:
		m := cfg.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return nil, fmt.Errorf("missing required MinIO config")
		}
		urlPrefix := m.URLPrefix
		if urlPrefix == "" {
			scheme := "http"
			if m.UseSSL {
				scheme = "https"
			}
			urlPrefix = fmt.Sprintf("%s://%s", scheme, m.Endpoint)
		}
		return NewMinIOStorage(&MinIOConfig{
			Endpoint:   m.Endpoint,
			AccessKey:  m.AccessKey,
			SecretKey:  m.SecretKey,
			BucketName: m.Bucket,
			UseSSL:     m.UseSSL,
			URLPrefix:  urlPrefix,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// extensionByContentType 根据内容类型返回扩展名
func extensionByContentType(contentType string) string {
	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}
