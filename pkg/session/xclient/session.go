package xclient

import (
	"context"
	"log/slog"
	"sync"

	"github.com/omeyang/xadmin/pkg/session/xdedup"
	"github.com/omeyang/xadmin/pkg/session/xhealth"
	"github.com/omeyang/xadmin/pkg/session/xnotify"
	"github.com/omeyang/xadmin/pkg/session/xrefresh"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// LogoutReason 登出原因。
type LogoutReason string

const (
	// LogoutUser 用户主动登出。
	LogoutUser LogoutReason = "user"
	// LogoutUnauthorized 认证接口被拒、重放后仍 401 或请求禁止刷新。
	LogoutUnauthorized LogoutReason = "unauthorized"
	// LogoutRefreshInvalid refresh token 失效。
	LogoutRefreshInvalid LogoutReason = "refresh_invalid"
	// LogoutConsecutiveFailures 连续网络失败。
	LogoutConsecutiveFailures = LogoutReason(xhealth.ReasonConsecutiveFailures)
	// LogoutProbeUnauthorized 离线确认探测返回未认证。
	LogoutProbeUnauthorized = LogoutReason(xhealth.ReasonProbeUnauthorized)
)

// LogoutFunc 登出监听器。
type LogoutFunc func(ctx context.Context, reason LogoutReason)

// Session 一个登录会话的全部可变状态，由 [Client] 创建并持有。
type Session struct {
	store    *xtoken.Store
	dedup    *xdedup.Deduplicator
	refresh  *xrefresh.Coordinator
	health   *xhealth.Monitor
	dispatch *xnotify.Dispatcher
	logger   *slog.Logger

	mu        sync.Mutex
	listeners map[uint64]LogoutFunc
	nextID    uint64
	closed    bool
}

// Store 返回令牌存储。
func (s *Session) Store() *xtoken.Store { return s.store }

// Dedup 返回在途请求表。
func (s *Session) Dedup() *xdedup.Deduplicator { return s.dedup }

// Refresh 返回刷新协调器。
func (s *Session) Refresh() *xrefresh.Coordinator { return s.refresh }

// Health 返回网络健康监控器。
func (s *Session) Health() *xhealth.Monitor { return s.health }

// Dispatcher 返回副作用分发器。
func (s *Session) Dispatcher() *xnotify.Dispatcher { return s.dispatch }

// IsAuthed 是否已登录。
func (s *Session) IsAuthed() bool { return s.store.IsAuthed() }

// OnLogout 注册登出监听器，返回取消函数。
func (s *Session) OnLogout(fn LogoutFunc) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[uint64]LogoutFunc)
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Logout 清空令牌、取消在途请求、重置失败窗口并通知监听器。不跳转页面。
func (s *Session) Logout(ctx context.Context, reason LogoutReason) {
	ctx = context.WithoutCancel(ctx)
	s.store.Clear(ctx)
	canceled := s.dedup.CancelAll()
	s.health.Reset()

	s.logger.InfoContext(ctx, "xclient: session logged out",
		slog.String("reason", string(reason)),
		slog.Int("canceled", canceled))

	s.mu.Lock()
	listeners := make([]LogoutFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		s.callListener(ctx, fn, reason)
	}
}

func (s *Session) callListener(ctx context.Context, fn LogoutFunc, reason LogoutReason) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "xclient: logout listener panicked", slog.Any("panic", r))
		}
	}()
	fn(ctx, reason)
}

// Close 停止健康监控并取消在途请求。令牌保留。
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.dedup.CancelAll()
	s.health.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
