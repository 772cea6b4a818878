package xnotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/omeyang/xadmin/pkg/session/xapierr"
	"github.com/omeyang/xadmin/pkg/session/xenvelope"
)

// Flags 单次请求对副作用的开关。
type Flags struct {
	SkipErrorToast    bool
	SkipAuthRedirect  bool
	SkipErrorRedirect bool
}

// Dispatcher 执行结果对应的副作用。零值不可用，使用 [NewDispatcher]。
type Dispatcher struct {
	notifier  Notifier
	navigator Navigator
	errors    *ErrorStore
	logger    *slog.Logger
}

// DispatcherOption Dispatcher 选项。
type DispatcherOption func(*Dispatcher)

// WithNotifier 设置提示通道。
func WithNotifier(n Notifier) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithNavigator 设置路由器。
func WithNavigator(n Navigator) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.navigator = n
		}
	}
}

// WithErrorStore 设置错误详情存储。
func WithErrorStore(s *ErrorStore) DispatcherOption {
	return func(d *Dispatcher) {
		if s != nil {
			d.errors = s
		}
	}
}

// WithLogger 设置日志记录器，nil 时使用 slog.Default()。
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher 创建 Dispatcher。
// 默认：LogNotifier、起始路由 "/" 的 MemoryNavigator、默认参数的 ErrorStore。
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.notifier == nil {
		d.notifier = LogNotifier{Logger: d.logger}
	}
	if d.navigator == nil {
		d.navigator = NewMemoryNavigator("/")
	}
	if d.errors == nil {
		d.errors = NewErrorStore(0, 0)
	}
	return d
}

// Navigator 返回路由器。
func (d *Dispatcher) Navigator() Navigator { return d.navigator }

// Errors 返回错误详情存储。
func (d *Dispatcher) Errors() *ErrorStore { return d.errors }

// BusinessError 提示业务错误；400/404/5xx 记录详情并跳转错误页。
func (d *Dispatcher) BusinessError(ctx context.Context, err *xapierr.APIError, f Flags) {
	if err == nil {
		return
	}
	if !f.SkipErrorToast {
		d.notify(ctx, Notice{Level: LevelError, Message: err.Message})
	}
	route := ErrorRoute(err.Code)
	if route == "" || f.SkipErrorRedirect {
		return
	}
	d.errors.Set(ErrorInfo{
		Code:      err.Code,
		Message:   err.Message,
		TraceID:   err.TraceID,
		Timestamp: err.Timestamp,
	})
	var q url.Values
	if err.TraceID != "" {
		q = url.Values{QueryTraceID: {err.TraceID}}
	}
	d.navigate(ctx, route, q)
}

// NetworkError 提示网络错误，超时与不可达使用不同文案。
func (d *Dispatcher) NetworkError(ctx context.Context, err error, f Flags) {
	if f.SkipErrorToast || xapierr.IsCanceled(err) {
		return
	}
	msg := xenvelope.DefaultMessage(xenvelope.CodeServiceUnavailable)
	if xapierr.IsTimeout(err) {
		msg = xenvelope.DefaultMessage(xenvelope.CodeTimeout)
	}
	d.notify(ctx, Notice{Level: LevelError, Message: msg})
}

// Unauthorized 跳转登录页，携带当前路径作为 redirect 参数（当前为 "/" 时不携带）。
func (d *Dispatcher) Unauthorized(ctx context.Context, f Flags) {
	if f.SkipAuthRedirect {
		return
	}
	current := d.current()
	var q url.Values
	if current != "" && current != "/" && routePath(current) != RouteLogin {
		q = url.Values{QueryRedirect: {current}}
	}
	d.navigate(ctx, RouteLogin, q)
}

// Notify 推送任意提示。
func (d *Dispatcher) Notify(ctx context.Context, level Level, msg string) {
	d.notify(ctx, Notice{Level: level, Message: msg})
}

func (d *Dispatcher) notify(ctx context.Context, n Notice) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("xnotify: notifier panicked", slog.Any("panic", r), slog.String("message", n.Message))
		}
	}()
	d.notifier.Notify(ctx, n)
}

func (d *Dispatcher) current() (cur string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("xnotify: navigator panicked", slog.Any("panic", r))
			cur = ""
		}
	}()
	return d.navigator.Current()
}

// navigate 已在目标路由时跳过。
func (d *Dispatcher) navigate(ctx context.Context, path string, q url.Values) {
	if routePath(d.current()) == path {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("xnotify: navigator panicked", slog.Any("panic", r), slog.String("path", path))
		}
	}()
	if err := d.navigator.Navigate(ctx, path, q); err != nil {
		d.logger.Warn("xnotify: navigate failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// String 便于日志输出。
func (f Flags) String() string {
	return fmt.Sprintf("toast=%t auth_redirect=%t error_redirect=%t", !f.SkipErrorToast, !f.SkipAuthRedirect, !f.SkipErrorRedirect)
}
