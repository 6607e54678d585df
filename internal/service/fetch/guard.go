package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrBlockedAddress 目标地址位于内网、回环或链路本地网段
var ErrBlockedAddress = errors.New("destination address not allowed")

// 运营商级 NAT 网段，net.IP.IsPrivate 不包含
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// allowedIP 只放行公网单播地址
func allowedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return false
	}
	if addr, ok := netip.AddrFromSlice(ip); ok && sharedAddressSpace.Contains(addr.Unmap()) {
		return false
	}
	return true
}

// dialControl 在建立连接前检查已解析的 IP，重定向和 DNS 重绑定同样经过这里
func dialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if !allowedIP(net.ParseIP(host)) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// newGuardedClient 只能访问公网地址的 HTTP 客户端
func newGuardedClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   dialControl,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConnsPerHost: 10,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			return ValidateRemote(req.URL.String())
		},
	}
}

// ValidateRemote 校验用户提交的 http(s) 地址：必须带主机名，
// 字面 IP 或 localhost 必须是公网地址。域名在连接时再检查解析结果
func ValidateRemote(locator string) error {
	if !IsRemote(locator) {
		return errors.New("url must be http(s)")
	}
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("url host is required")
	}
	if u.User != nil {
		return errors.New("url must not carry credentials")
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	if ip := net.ParseIP(host); ip != nil && !allowedIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}
