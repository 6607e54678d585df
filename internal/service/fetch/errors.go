package fetch

import (
	"errors"
	"fmt"
)

// Kind 下载失败类别
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindStatus    Kind = "non-success-status"
	KindTransport Kind = "transport-error"
)

var (
	// ErrTimeout 下载超时
	ErrTimeout = errors.New("fetch timeout")
	// ErrStatus 远端返回非 2xx
	ErrStatus = errors.New("fetch non-success status")
	// ErrTransport 连接/读取失败
	ErrTransport = errors.New("fetch transport error")
)

// Error 分类的下载错误
type Error struct {
	Kind       Kind
	Locator    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: status %d", e.Locator, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Locator, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Locator, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is(err, fetch.ErrTimeout) 等按类别匹配
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrStatus:
		return e.Kind == KindStatus
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}
