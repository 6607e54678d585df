// Package fetch 按定位符下载报告文件的二进制内容
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	applog "github.com/ashwinyue/report-insight/internal/logger"
	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/service/file"
)

const (
	// DefaultTimeout 默认下载等待上限
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBytes 默认下载大小上限
	DefaultMaxBytes int64 = 20 << 20
)

// Fetcher 获取文件二进制内容，不做重试
type Fetcher interface {
	Fetch(ctx context.Context, locator string, category model.FileCategory) ([]byte, error)
}

// Options 下载选项
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// HTTPFetcher 下载 http(s) 地址
type HTTPFetcher struct {
	client  *http.Client
	guarded bool
	opts    Options
}

// NewHTTPFetcher 创建 HTTP 下载器
// client 为空时使用只能访问公网地址的客户端；传入的 client 由调用方负责访问控制
func NewHTTPFetcher(client *http.Client, opts Options) *HTTPFetcher {
	guarded := false
	if client == nil {
		client = newGuardedClient()
		guarded = true
	}
	return &HTTPFetcher{client: client, guarded: guarded, opts: opts.withDefaults()}
}

// Fetch 下载 locator 指向的内容
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string, category model.FileCategory) ([]byte, error) {
	if f.guarded {
		if err := ValidateRemote(locator); err != nil {
			return nil, &Error{Kind: KindTransport, Locator: locator, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, http.NoBody)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Locator: locator, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(ctx, locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 丢弃 body 以便连接复用
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: KindStatus, Locator: locator, StatusCode: resp.StatusCode}
	}

	data, err := readLimited(resp.Body, f.opts.MaxBytes)
	if err != nil {
		return nil, classify(ctx, locator, err)
	}

	logger := applog.Component("fetcher")
	logger.Debug().
		Str("locator", locator).
		Str("category", string(category)).
		Int("bytes", len(data)).
		Msg("fetched remote file")
	return data, nil
}

// StorageFetcher 通过存储键读取（本地磁盘或 MinIO）
type StorageFetcher struct {
	storage file.Storage
	opts    Options
}

// NewStorageFetcher 创建存储下载器
func NewStorageFetcher(storage file.Storage, opts Options) *StorageFetcher {
	return &StorageFetcher{storage: storage, opts: opts.withDefaults()}
}

// Fetch 读取存储中的对象
func (f *StorageFetcher) Fetch(ctx context.Context, locator string, category model.FileCategory) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	rc, err := f.storage.Get(ctx, locator)
	if err != nil {
		return nil, classify(ctx, locator, err)
	}
	defer rc.Close()

	data, err := readLimited(rc, f.opts.MaxBytes)
	if err != nil {
		return nil, classify(ctx, locator, err)
	}
	return data, nil
}

// Router 按定位符的 scheme 分发：http(s) 走 HTTP，其余视为存储键
type Router struct {
	http    Fetcher
	storage Fetcher
}

// NewRouter 创建分发下载器，storage 可以为空
func NewRouter(httpFetcher, storageFetcher Fetcher) *Router {
	return &Router{http: httpFetcher, storage: storageFetcher}
}

// Fetch 实现 Fetcher
func (r *Router) Fetch(ctx context.Context, locator string, category model.FileCategory) ([]byte, error) {
	if IsRemote(locator) {
		return r.http.Fetch(ctx, locator, category)
	}
	if r.storage == nil {
		return nil, &Error{Kind: KindTransport, Locator: locator, Err: errors.New("no storage configured")}
	}
	return r.storage.Fetch(ctx, locator, category)
}

// IsRemote 判断定位符是否为 http(s) 地址
func IsRemote(locator string) bool {
	l := strings.ToLower(locator)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, fmt.Errorf("body exceeds %d bytes", max)
	}
	return buf.Bytes(), nil
}

func classify(ctx context.Context, locator string, err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Locator: locator, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Locator: locator, Err: err}
	}
	return &Error{Kind: KindTransport, Locator: locator, Err: err}
}
