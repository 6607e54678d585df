package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"
)

// HTTPRoundTripper 重写 HTTP 请求到测试服务器
// 用于把指向外部主机的报告地址重定向到 httptest 服务器
type HTTPRoundTripper struct {
	base  *url.URL          // 测试服务器 URL
	next  http.RoundTripper // 下一个 Transport
	hosts []string          // 为空时重写所有请求
}

// RoundTrip 实现 http.RoundTripper 接口
func (t *HTTPRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.shouldRewrite(req) {
		cloned := req.Clone(req.Context())
		cloned.URL.Scheme = t.base.Scheme
		cloned.URL.Host = t.base.Host
		req = cloned
	}
	return t.next.RoundTrip(req)
}

func (t *HTTPRoundTripper) shouldRewrite(req *http.Request) bool {
	if len(t.hosts) == 0 {
		return true
	}
	for _, host := range t.hosts {
		if req.URL.Host == host {
			return true
		}
	}
	return false
}

// NewTestClient 创建测试用 HTTP 客户端，自动将请求重定向到测试服务器
func NewTestClient(ts *httptest.Server, hosts ...string) *http.Client {
	u, _ := url.Parse(ts.URL)
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &HTTPRoundTripper{
			base:  u,
			next:  http.DefaultTransport,
			hosts: hosts,
		},
	}
}
