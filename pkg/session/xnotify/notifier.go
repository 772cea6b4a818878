package xnotify

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Level 提示级别。
type Level string

const (
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

// 各级别默认展示时长。
const (
	ErrorTTL   = 6 * time.Second
	InfoTTL    = 4 * time.Second
	SuccessTTL = 3 * time.Second
)

// MaxToasts 同时保留的提示条数。
const MaxToasts = 5

// DefaultTTL 返回级别对应的默认时长。
func DefaultTTL(l Level) time.Duration {
	switch l {
	case LevelError:
		return ErrorTTL
	case LevelSuccess:
		return SuccessTTL
	default:
		return InfoTTL
	}
}

// Notice 一条提示。
type Notice struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
	// TTL 为 0 时使用级别默认值。
	TTL time.Duration
}

// Notifier 提示通道。
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc 函数适配器。
type NotifierFunc func(ctx context.Context, n Notice)

// Notify 实现 Notifier。
func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// =============================================================================
// Toasts
// =============================================================================

// Toasts 内存提示列表：新提示在前，最多 MaxToasts 条，过期条目在读取时剔除。
type Toasts struct {
	now func() time.Time
	seq atomic.Uint64

	mu    sync.Mutex
	items []Notice
}

// ToastsOption Toasts 选项。
type ToastsOption func(*Toasts)

// WithNow 设置时间源。
func WithNow(now func() time.Time) ToastsOption {
	return func(t *Toasts) {
		if now != nil {
			t.now = now
		}
	}
}

// NewToasts 创建 Toasts。
func NewToasts(opts ...ToastsOption) *Toasts {
	t := &Toasts{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Notify 实现 Notifier。
func (t *Toasts) Notify(_ context.Context, n Notice) {
	now := t.now()
	if n.ID == "" {
		n.ID = strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatUint(t.seq.Add(1), 16)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.TTL <= 0 {
		n.TTL = DefaultTTL(n.Level)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	items := make([]Notice, 0, MaxToasts)
	items = append(items, n)
	for _, it := range t.items {
		if len(items) == MaxToasts {
			break
		}
		items = append(items, it)
	}
	t.items = items
}

// Error 推送错误提示。
func (t *Toasts) Error(msg string) { t.Notify(context.Background(), Notice{Level: LevelError, Message: msg}) }

// Info 推送普通提示。
func (t *Toasts) Info(msg string) { t.Notify(context.Background(), Notice{Level: LevelInfo, Message: msg}) }

// Success 推送成功提示。
func (t *Toasts) Success(msg string) {
	t.Notify(context.Background(), Notice{Level: LevelSuccess, Message: msg})
}

// Items 返回未过期的提示，新的在前。
func (t *Toasts) Items() []Notice {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	live := t.items[:0]
	for _, it := range t.items {
		if now.Before(it.CreatedAt.Add(it.TTL)) {
			live = append(live, it)
		}
	}
	t.items = live
	return append([]Notice(nil), live...)
}

// Remove 删除指定提示。
func (t *Toasts) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.items[:0]
	for _, it := range t.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	t.items = kept
}

// Clear 清空提示。
func (t *Toasts) Clear() {
	t.mu.Lock()
	t.items = nil
	t.mu.Unlock()
}

// =============================================================================
// LogNotifier
// =============================================================================

// LogNotifier 把提示写入日志，CLI 默认使用。
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify 实现 Notifier。
func (l LogNotifier) Notify(ctx context.Context, n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelError
	}
	logger.Log(ctx, level, n.Message, slog.String("notice", string(n.Level)))
}

// Multi 把提示分发给多个 Notifier。
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notice) {
		for _, nt := range notifiers {
			if nt != nil {
				nt.Notify(ctx, n)
			}
		}
	})
}
