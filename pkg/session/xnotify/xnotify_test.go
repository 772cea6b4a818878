package xnotify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xadmin/pkg/session/xapierr"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type manualNow struct{ t time.Time }

func (m *manualNow) now() time.Time { return m.t }

func TestToasts_CapAndOrder(t *testing.T) {
	clock := &manualNow{t: time.Unix(1700000000, 0)}
	toasts := NewToasts(WithNow(clock.now))

	for i := range 7 {
		toasts.Info("msg-" + strconv.Itoa(i))
	}
	items := toasts.Items()
	require.Len(t, items, MaxToasts)
	assert.Equal(t, "msg-6", items[0].Message, "newest first")
	assert.Equal(t, "msg-2", items[4].Message)
}

func TestToasts_Expiry(t *testing.T) {
	clock := &manualNow{t: time.Unix(1700000000, 0)}
	toasts := NewToasts(WithNow(clock.now))

	toasts.Error("e")
	toasts.Info("i")
	toasts.Success("s")
	assert.Len(t, toasts.Items(), 3)

	clock.t = clock.t.Add(SuccessTTL)
	assert.Len(t, toasts.Items(), 2, "success expires after 3s")

	clock.t = clock.t.Add(InfoTTL - SuccessTTL)
	items := toasts.Items()
	require.Len(t, items, 1)
	assert.Equal(t, LevelError, items[0].Level)

	clock.t = clock.t.Add(ErrorTTL)
	assert.Empty(t, toasts.Items())
}

func TestToasts_RemoveAndClear(t *testing.T) {
	toasts := NewToasts()
	toasts.Info("a")
	toasts.Info("b")
	items := toasts.Items()
	require.Len(t, items, 2)
	assert.NotEqual(t, items[0].ID, items[1].ID)

	toasts.Remove(items[0].ID)
	assert.Len(t, toasts.Items(), 1)
	toasts.Clear()
	assert.Empty(t, toasts.Items())
}

func TestErrorRoute(t *testing.T) {
	assert.Equal(t, RouteError400, ErrorRoute(400))
	assert.Equal(t, RouteError404, ErrorRoute(404))
	assert.Equal(t, RouteError500, ErrorRoute(500))
	assert.Equal(t, RouteError500, ErrorRoute(503))
	assert.Empty(t, ErrorRoute(409))
	assert.Empty(t, ErrorRoute(401))
}

func newTestDispatcher(start string) (*Dispatcher, *Toasts, *MemoryNavigator) {
	toasts := NewToasts()
	nav := NewMemoryNavigator(start)
	d := NewDispatcher(WithNotifier(toasts), WithNavigator(nav), WithLogger(quietLogger()))
	return d, toasts, nav
}

func TestDispatcher_BusinessError(t *testing.T) {
	t.Run("toast and error page", func(t *testing.T) {
		d, toasts, nav := newTestDispatcher("/system/user")
		d.BusinessError(context.Background(), &xapierr.APIError{Code: 500, Message: "系统繁忙", TraceID: "t-1"}, Flags{})

		items := toasts.Items()
		require.Len(t, items, 1)
		assert.Equal(t, "系统繁忙", items[0].Message)
		assert.Equal(t, []string{"/error/500?traceId=t-1"}, nav.History())

		last, ok := d.Errors().Last()
		require.True(t, ok)
		assert.Equal(t, 500, last.Code)
		byTrace, ok := d.Errors().ByTraceID("t-1")
		require.True(t, ok)
		assert.Equal(t, "系统繁忙", byTrace.Message)
	})

	t.Run("conflict only toasts", func(t *testing.T) {
		d, toasts, nav := newTestDispatcher("/system/user")
		d.BusinessError(context.Background(), xapierr.NewAPIError(409, "用户名已存在", ""), Flags{})
		assert.Len(t, toasts.Items(), 1)
		assert.Empty(t, nav.History())
	})

	t.Run("opt outs", func(t *testing.T) {
		d, toasts, nav := newTestDispatcher("/system/user")
		d.BusinessError(context.Background(), xapierr.NewAPIError(404, "数据不存在", ""),
			Flags{SkipErrorToast: true, SkipErrorRedirect: true})
		assert.Empty(t, toasts.Items())
		assert.Empty(t, nav.History())
		_, ok := d.Errors().Last()
		assert.False(t, ok)
	})

	t.Run("already on error page", func(t *testing.T) {
		d, _, nav := newTestDispatcher("/error/400")
		d.BusinessError(context.Background(), xapierr.NewAPIError(400, "参数错误", ""), Flags{})
		assert.Empty(t, nav.History())
	})

	t.Run("nil error", func(t *testing.T) {
		d, toasts, _ := newTestDispatcher("/")
		d.BusinessError(context.Background(), nil, Flags{})
		assert.Empty(t, toasts.Items())
	})
}

func TestDispatcher_NetworkError(t *testing.T) {
	d, toasts, nav := newTestDispatcher("/")

	d.NetworkError(context.Background(), &xapierr.NetworkError{Err: errors.New("refused")}, Flags{})
	d.NetworkError(context.Background(), &xapierr.NetworkError{Timeout: true, Err: context.DeadlineExceeded}, Flags{})
	d.NetworkError(context.Background(), xapierr.ErrCanceled, Flags{})
	d.NetworkError(context.Background(), &xapierr.NetworkError{Err: errors.New("x")}, Flags{SkipErrorToast: true})

	items := toasts.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "请求超时", items[0].Message)
	assert.Equal(t, "服务不可用", items[1].Message)
	assert.Empty(t, nav.History())
}

func TestDispatcher_Unauthorized(t *testing.T) {
	t.Run("carries return path", func(t *testing.T) {
		d, _, nav := newTestDispatcher("/system/user?page=2")
		d.Unauthorized(context.Background(), Flags{})
		require.Len(t, nav.History(), 1)

		u, err := url.Parse(nav.History()[0])
		require.NoError(t, err)
		assert.Equal(t, RouteLogin, u.Path)
		assert.Equal(t, "/system/user?page=2", u.Query().Get(QueryRedirect))
	})

	t.Run("root has no query", func(t *testing.T) {
		d, _, nav := newTestDispatcher("/")
		d.Unauthorized(context.Background(), Flags{})
		assert.Equal(t, []string{"/login"}, nav.History())
	})

	t.Run("already on login", func(t *testing.T) {
		d, _, nav := newTestDispatcher("/login?redirect=%2Fx")
		d.Unauthorized(context.Background(), Flags{})
		assert.Empty(t, nav.History())
	})

	t.Run("skip", func(t *testing.T) {
		d, _, nav := newTestDispatcher("/x")
		d.Unauthorized(context.Background(), Flags{SkipAuthRedirect: true})
		assert.Empty(t, nav.History())
	})
}

type panicNavigator struct{}

func (panicNavigator) Current() string { panic("no router") }
func (panicNavigator) Navigate(context.Context, string, url.Values) error {
	panic("no router")
}

func TestDispatcher_NeverPanics(t *testing.T) {
	d := NewDispatcher(
		WithNotifier(NotifierFunc(func(context.Context, Notice) { panic("ui gone") })),
		WithNavigator(panicNavigator{}),
		WithLogger(quietLogger()),
	)
	assert.NotPanics(t, func() {
		d.BusinessError(context.Background(), xapierr.NewAPIError(500, "x", ""), Flags{})
		d.Unauthorized(context.Background(), Flags{})
		d.NetworkError(context.Background(), &xapierr.NetworkError{}, Flags{})
	})
}

func TestMulti(t *testing.T) {
	a, b := NewToasts(), NewToasts()
	Multi(a, nil, b, LogNotifier{Logger: quietLogger()}).Notify(context.Background(), Notice{Level: LevelInfo, Message: "hi"})
	assert.Len(t, a.Items(), 1)
	assert.Len(t, b.Items(), 1)
}

func TestErrorStore_Clear(t *testing.T) {
	s := NewErrorStore(2, time.Minute)
	s.Set(ErrorInfo{Code: 500, TraceID: "a"})
	s.Clear()
	_, ok := s.Last()
	assert.False(t, ok)
	_, ok = s.ByTraceID("a")
	assert.True(t, ok)
}
