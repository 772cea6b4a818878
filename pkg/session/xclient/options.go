package xclient

import (
	"log/slog"
	"net/http"

	"github.com/omeyang/xadmin/pkg/observability/xmetrics"
	"github.com/omeyang/xadmin/pkg/session/xhealth"
	"github.com/omeyang/xadmin/pkg/session/xnotify"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// =============================================================================
// 客户端选项
// =============================================================================

// clientOptions 定义客户端的可选配置。
type clientOptions struct {
	// HTTPClient 自定义 HTTP 客户端。
	// 超时由每次请求的 context 控制，HTTPClient.Timeout 建议保持为 0。
	HTTPClient *http.Client

	// TokenBackend 令牌持久化后端，默认内存。
	TokenBackend xtoken.Backend

	// Notifier 提示通道，默认写日志。
	Notifier xnotify.Notifier

	// Navigator 路由器，默认进程内路由。
	Navigator xnotify.Navigator

	// ErrorStore 错误页详情存储。
	ErrorStore *xnotify.ErrorStore

	// Clock 健康监控时间源，测试使用。
	Clock xhealth.Clock

	// Logger 日志记录器，默认 slog.Default()。
	Logger *slog.Logger

	// Observer 可观测性接口。
	Observer xmetrics.Observer
}

// Option 定义配置客户端的函数类型。
type Option func(*clientOptions)

func defaultOptions() *clientOptions {
	return &clientOptions{
		Logger:   slog.Default(),
		Observer: xmetrics.NoopObserver{},
	}
}

// WithHTTPClient 设置自定义 HTTP 客户端。
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.HTTPClient = client
		}
	}
}

// WithTokenBackend 设置令牌持久化后端。
func WithTokenBackend(b xtoken.Backend) Option {
	return func(o *clientOptions) {
		if b != nil {
			o.TokenBackend = b
		}
	}
}

// WithNotifier 设置提示通道。
func WithNotifier(n xnotify.Notifier) Option {
	return func(o *clientOptions) {
		if n != nil {
			o.Notifier = n
		}
	}
}

// WithNavigator 设置路由器。
func WithNavigator(n xnotify.Navigator) Option {
	return func(o *clientOptions) {
		if n != nil {
			o.Navigator = n
		}
	}
}

// WithErrorStore 设置错误页详情存储。
func WithErrorStore(s *xnotify.ErrorStore) Option {
	return func(o *clientOptions) {
		if s != nil {
			o.ErrorStore = s
		}
	}
}

// WithClock 设置健康监控时间源。
func WithClock(c xhealth.Clock) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.Clock = c
		}
	}
}

// WithLogger 设置日志记录器，nil 时保持 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithObserver 设置可观测性接口。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *clientOptions) {
		if obs != nil {
			o.Observer = obs
		}
	}
}
