// Package xhealth 监控已登录会话的网络健康，长时间断网时强制登出。
//
// 只统计网络不可达与超时（取消和业务错误不计入），且只在已登录时统计。
// 两个触发条件，满足其一即处理：
//
//   - 连续失败次数达到 MaxConsecutiveFailures：直接强制登出
//   - 自首次失败起持续 MaxOfflineDuration：发起一次确认探测；
//     探测返回未认证则强制登出，其他结果重置失败窗口
//
// 任意成功响应重置失败窗口。强制登出在 LogoutCooldown 内最多触发一次。
package xhealth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/omeyang/xadmin/pkg/observability/xmetrics"
	"github.com/omeyang/xadmin/pkg/session/xapierr"
)

// Reason 强制登出原因。
type Reason string

const (
	ReasonConsecutiveFailures Reason = "consecutive_failures"
	ReasonProbeUnauthorized   Reason = "probe_unauthorized"
)

// ProbeResult 确认探测结果。
type ProbeResult int

const (
	// ProbeOK 服务端可达且会话有效。
	ProbeOK ProbeResult = iota
	// ProbeUnauthorized 服务端判定会话无效。
	ProbeUnauthorized
	// ProbeOther 其他结果（仍不可达、服务端错误等）。
	ProbeOther
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeOK:
		return "ok"
	case ProbeUnauthorized:
		return "unauthorized"
	default:
		return "other"
	}
}

// Hooks 监控器回调。
type Hooks struct {
	// IsAuthed 当前是否已登录，未设置时视为未登录（不统计）。
	IsAuthed func() bool
	// Probe 确认探测，必须遵守 ctx 超时，且不得触发登出等副作用。
	Probe func(ctx context.Context) ProbeResult
	// ForceLogout 执行强制登出。
	ForceLogout func(ctx context.Context, reason Reason)
}

// Window 失败窗口快照。
type Window struct {
	ConsecutiveFailures int
	FirstFailureAt      time.Time
	Probing             bool
}

// Monitor 网络健康监控器。
type Monitor struct {
	hooks    Hooks
	clock    Clock
	logger   *slog.Logger
	observer xmetrics.Observer

	// 探测使用的根 context，Close 时取消
	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	cfg      Config
	failures int
	first    time.Time
	timer    Timer
	probing  bool
	closed   bool
	limiter  *rate.Limiter
}

// Option 监控器选项。
type Option func(*Monitor)

// WithClock 设置时间源。
func WithClock(c Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger 设置日志记录器，nil 时使用 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver 设置观测器。
func WithObserver(o xmetrics.Observer) Option {
	return func(m *Monitor) {
		if o != nil {
			m.observer = o
		}
	}
}

// New 创建监控器。cfg 零值字段使用默认值。
func New(cfg Config, hooks Hooks, opts ...Option) (*Monitor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		hooks:    hooks,
		clock:    realClock{},
		logger:   slog.Default(),
		observer: xmetrics.NoopObserver{},
		cfg:      cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.limiter = rate.NewLimiter(limitFor(cfg.LogoutCooldown), 1)
	m.baseCtx, m.baseCancel = context.WithCancel(context.Background())
	return m, nil
}

func limitFor(cooldown time.Duration) rate.Limit {
	if cooldown <= 0 {
		return rate.Inf
	}
	return rate.Every(cooldown)
}

// RecordFailure 记录一次请求失败。非网络错误或未登录时忽略。
func (m *Monitor) RecordFailure(ctx context.Context, err error) {
	if !xapierr.IsNetwork(err) || !m.authed() {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	m.failures++
	if m.first.IsZero() {
		m.first = now
		m.armTimerLocked()
	}
	failures, first, cfg := m.failures, m.first, m.cfg

	switch {
	case failures >= cfg.MaxConsecutiveFailures:
		m.resetLocked()
		m.mu.Unlock()
		m.logger.Warn("xhealth: too many consecutive network failures",
			slog.Int("failures", failures))
		m.forceLogout(ctx, ReasonConsecutiveFailures)
	case now.Sub(first) >= cfg.MaxOfflineDuration:
		m.startProbeLocked()
		m.mu.Unlock()
	default:
		m.mu.Unlock()
	}
}

// RecordSuccess 记录一次成功响应，重置失败窗口。
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
}

// Reset 重置失败窗口（登出时调用）。
func (m *Monitor) Reset() { m.RecordSuccess() }

// Window 返回失败窗口快照。
func (m *Monitor) Window() Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Window{ConsecutiveFailures: m.failures, FirstFailureAt: m.first, Probing: m.probing}
}

// Config 返回当前配置。
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig 热更新阈值，不影响已记录的失败窗口。
func (m *Monitor) UpdateConfig(cfg Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.limiter.SetLimitAt(m.clock.Now(), limitFor(cfg.LogoutCooldown))
	m.mu.Unlock()
	return nil
}

// Close 停止定时器并等待在途探测结束。
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.resetLocked()
	m.mu.Unlock()

	m.baseCancel()
	m.wg.Wait()
}

func (m *Monitor) authed() bool {
	return m.hooks.IsAuthed != nil && m.hooks.IsAuthed()
}

func (m *Monitor) armTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	first := m.first
	m.timer = m.clock.AfterFunc(m.cfg.MaxOfflineDuration, func() { m.onOfflineTimer(first) })
}

// onOfflineTimer 离线时长到期。first 用于识别定时器是否属于当前窗口。
func (m *Monitor) onOfflineTimer(first time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.first.IsZero() || !m.first.Equal(first) {
		return
	}
	m.startProbeLocked()
}

func (m *Monitor) resetLocked() {
	m.failures = 0
	m.first = time.Time{}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// startProbeLocked 发起确认探测；同一时刻只有一个探测。
func (m *Monitor) startProbeLocked() {
	if m.probing || m.closed {
		return
	}
	m.probing = true
	timeout := m.cfg.ProbeTimeout
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runProbe(timeout)
	}()
}

func (m *Monitor) runProbe(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(m.baseCtx, timeout)
	defer cancel()

	result := ProbeOther
	if m.authed() {
		result = m.probe(ctx)
	}

	m.mu.Lock()
	m.probing = false
	closed := m.closed
	m.resetLocked()
	m.mu.Unlock()

	m.logger.Info("xhealth: offline confirmation probe finished",
		slog.String("result", result.String()))
	if result == ProbeUnauthorized && !closed {
		m.forceLogout(context.WithoutCancel(ctx), ReasonProbeUnauthorized)
	}
}

func (m *Monitor) probe(ctx context.Context) (result ProbeResult) {
	ctx, span := xmetrics.Start(ctx, m.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpProbe,
		Kind:      xmetrics.KindInternal,
	})
	defer func() {
		span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
			xmetrics.String(MetricsAttrProbeResult, result.String()),
		}})
	}()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("xhealth: probe panicked", slog.Any("panic", r))
			result = ProbeOther
		}
	}()

	if m.hooks.Probe == nil {
		return ProbeOther
	}
	return m.hooks.Probe(ctx)
}

// forceLogout 在冷却期内只触发一次。
func (m *Monitor) forceLogout(ctx context.Context, reason Reason) {
	m.mu.Lock()
	allowed := m.limiter.AllowN(m.clock.Now(), 1)
	m.mu.Unlock()

	_, span := xmetrics.Start(ctx, m.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpForceLogout,
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String(MetricsAttrReason, string(reason))},
	})
	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Bool(MetricsAttrThrottled, !allowed)}})

	if !allowed {
		m.logger.Debug("xhealth: forced logout throttled", slog.String("reason", string(reason)))
		return
	}
	m.logger.Warn("xhealth: forcing logout", slog.String("reason", string(reason)))
	if m.hooks.ForceLogout != nil {
		m.hooks.ForceLogout(ctx, reason)
	}
}
