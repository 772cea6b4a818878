package xnotify

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// 路由。
const (
	RouteLogin    = "/login"
	RouteError400 = "/error/400"
	RouteError404 = "/error/404"
	RouteError500 = "/error/500"

	// QueryRedirect 登录后返回地址的查询参数名。
	QueryRedirect = "redirect"
	// QueryTraceID 错误页用于查找详情的查询参数名。
	QueryTraceID = "traceId"
)

// ErrorRoute 返回业务错误码对应的错误页，不需要跳转时返回空串。
func ErrorRoute(code int) string {
	switch {
	case code == 400:
		return RouteError400
	case code == 404:
		return RouteError404
	case code >= 500 && code <= 599:
		return RouteError500
	default:
		return ""
	}
}

// Navigator 路由器。
type Navigator interface {
	// Current 返回当前完整路径（含查询串）。
	Current() string
	// Navigate 跳转到 path。
	Navigate(ctx context.Context, path string, query url.Values) error
}

// MemoryNavigator 进程内路由，记录跳转历史。
type MemoryNavigator struct {
	mu      sync.Mutex
	current string
	history []string
}

// NewMemoryNavigator 以 start 为初始路由创建导航器，空值为 "/"。
func NewMemoryNavigator(start string) *MemoryNavigator {
	if start == "" {
		start = "/"
	}
	return &MemoryNavigator{current: start}
}

// Current 实现 Navigator。
func (n *MemoryNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Navigate 实现 Navigator。
func (n *MemoryNavigator) Navigate(_ context.Context, path string, query url.Values) error {
	full := path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	n.mu.Lock()
	n.current = full
	n.history = append(n.history, full)
	n.mu.Unlock()
	return nil
}

// History 返回跳转历史。
func (n *MemoryNavigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// routePath 去掉查询串与片段。
func routePath(full string) string {
	if i := strings.IndexAny(full, "?#"); i >= 0 {
		return full[:i]
	}
	return full
}
