// Package xrefresh 协调 access token 刷新：任意时刻最多一个刷新在途。
//
// 第一个遇到 401 的请求成为刷新发起者，其余请求排队等待结果，
// 刷新结束后按入队顺序（FIFO）统一放行或拒绝。
//
// 刷新结果分三类：
//
//   - 成功：保存新令牌（未下发新 refresh token 时保留旧值），等待者拿到新 access token
//   - 失效：refresh token 缺失或被拒绝，清空令牌、调用 OnInvalid 一次，等待者收到 ErrUnauthorized
//   - 暂时失败：网络或服务端错误，令牌保留，等待者收到同一错误
//
// 状态先回到 Idle 再放行等待者，因此等待者的重放请求若再次 401 可以发起新的刷新。
package xrefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xadmin/pkg/observability/xmetrics"
	"github.com/omeyang/xadmin/pkg/session/xapierr"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// ErrNoRefreshToken 表示没有可用的 refresh token。
var ErrNoRefreshToken = errors.New("xrefresh: no refresh token")

// State 协调器状态。
type State int

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "refreshing"
	}
	return "idle"
}

// Outcome 一次刷新的结果分类。
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalid
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "transient"
	}
}

// RefreshFunc 用 refresh token 换取新令牌。
// 返回的 RefreshToken 为空表示服务端未轮换 refresh token。
type RefreshFunc func(ctx context.Context, refreshToken string) (xtoken.TokenPair, error)

// TokenStore 协调器依赖的令牌存储，*xtoken.Store 满足该接口。
type TokenStore interface {
	Pair() xtoken.TokenPair
	Save(ctx context.Context, pair xtoken.TokenPair)
	Clear(ctx context.Context)
}

// Stats 累计统计。
type Stats struct {
	Success   uint64
	Invalid   uint64
	Transient uint64
	// Joined 作为等待者加入的次数
	Joined uint64
	// Reused 直接复用他人刚刷新的 token 的次数
	Reused uint64
}

type result struct {
	token string
	err   error
}

// Coordinator 刷新协调器。
type Coordinator struct {
	store     TokenStore
	onInvalid func(ctx context.Context, cause error)
	timeout   time.Duration
	logger    *slog.Logger
	observer  xmetrics.Observer

	mu      sync.Mutex
	state   State
	waiters []chan result

	success   atomic.Uint64
	invalid   atomic.Uint64
	transient atomic.Uint64
	joined    atomic.Uint64
	reused    atomic.Uint64
}

// Option 协调器选项。
type Option func(*Coordinator)

// WithOnInvalid 设置刷新失效回调，每次失效只调用一次（登出、跳转登录页）。
func WithOnInvalid(fn func(ctx context.Context, cause error)) Option {
	return func(c *Coordinator) {
		c.onInvalid = fn
	}
}

// WithTimeout 设置单次刷新超时，0 表示不限制。
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithLogger 设置日志记录器，nil 时使用 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver 设置观测器。
func WithObserver(o xmetrics.Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// New 创建协调器。
func New(store TokenStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		logger:   slog.Default(),
		observer: xmetrics.NoopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Refresh 获取新的 access token。
//
// 空闲时由调用方发起刷新；刷新进行中时排队等待同一次刷新的结果。
// 失效时返回的错误满足 errors.Is(err, xapierr.ErrUnauthorized)。
// 等待期间 ctx 结束则返回 context.Cause(ctx)，不影响进行中的刷新。
func (c *Coordinator) Refresh(ctx context.Context, fn RefreshFunc) (string, error) {
	return c.RefreshFrom(ctx, "", fn)
}

// RefreshFrom 与 Refresh 相同，stale 为请求被拒时携带的 access token。
// 空闲且存储中已是另一个非空 token（其他请求刚完成刷新）时直接返回该 token，不再发起刷新。
func (c *Coordinator) RefreshFrom(ctx context.Context, stale string, fn RefreshFunc) (string, error) {
	c.mu.Lock()
	if c.state == StateIdle && stale != "" {
		if current := c.store.Pair().AccessToken; current != "" && current != stale {
			c.mu.Unlock()
			c.reused.Add(1)
			return current, nil
		}
	}
	if c.state == StateRefreshing {
		ch := make(chan result, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		c.joined.Add(1)

		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			// 结果先于取消送达时以结果为准（如刷新失效后的登出）
			select {
			case r := <-ch:
				return r.token, r.err
			default:
			}
			return "", context.Cause(ctx)
		}
	}
	c.state = StateRefreshing
	c.mu.Unlock()

	return c.lead(ctx, fn)
}

// lead 执行刷新并放行等待者。
func (c *Coordinator) lead(ctx context.Context, fn RefreshFunc) (token string, err error) {
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpRefresh,
		Kind:      xmetrics.KindInternal,
	})
	var outcome Outcome
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{
			xmetrics.String(MetricsAttrOutcome, outcome.String()),
		}})
	}()

	// 发起者的 ctx 被取消（如请求被去重取代）不应中断共享的刷新
	runCtx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.timeout)
		defer cancel()
	}

	current := c.store.Pair()
	var issued xtoken.TokenPair
	var callErr error
	if current.RefreshToken == "" {
		callErr = ErrNoRefreshToken
	} else {
		issued, callErr = c.call(runCtx, fn, current.RefreshToken)
	}

	outcome = Classify(issued, callErr)
	switch outcome {
	case OutcomeSuccess:
		c.success.Add(1)
		next := c.store.Pair().WithAccess(issued.AccessToken, issued.RefreshToken)
		c.store.Save(runCtx, next)
		c.finish(result{token: next.AccessToken})
		c.logger.Debug("xrefresh: token refreshed")
		return next.AccessToken, nil

	case OutcomeInvalid:
		c.invalid.Add(1)
		err = invalidError(callErr)
		c.store.Clear(runCtx)
		c.finish(result{err: err})
		c.logger.Warn("xrefresh: refresh token invalid, session cleared", slog.String("error", err.Error()))
		if c.onInvalid != nil {
			c.onInvalid(runCtx, err)
		}
		return "", err

	default:
		c.transient.Add(1)
		err = fmt.Errorf("xrefresh: refresh failed: %w", callErr)
		c.finish(result{err: err})
		c.logger.Warn("xrefresh: refresh failed, keeping session", slog.String("error", callErr.Error()))
		return "", err
	}
}

// call 调用 fn，recover 其 panic 以保证等待者一定被放行。
func (c *Coordinator) call(ctx context.Context, fn RefreshFunc, refreshToken string) (pair xtoken.TokenPair, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xrefresh: refresh func panicked: %v", r)
		}
	}()
	return fn(ctx, refreshToken)
}

// finish 先回到 Idle，再按 FIFO 放行等待者。
func (c *Coordinator) finish(r result) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.state = StateIdle
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- r
	}
}

// Classify 判定刷新结果。
//
//   - 无错误且有 access token：成功
//   - 无错误但缺少 access token、refresh token 缺失、被拒绝（401/403）：失效
//   - 其他错误：暂时失败
func Classify(issued xtoken.TokenPair, err error) Outcome {
	if err == nil {
		if issued.AccessToken == "" {
			return OutcomeInvalid
		}
		return OutcomeSuccess
	}
	if errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, xapierr.ErrRefreshRejected) ||
		xapierr.IsUnauthorized(err) ||
		xapierr.IsForbidden(err) {
		return OutcomeInvalid
	}
	return OutcomeTransient
}

func invalidError(cause error) error {
	if cause == nil {
		return fmt.Errorf("xrefresh: refresh returned no access token: %w", xapierr.ErrUnauthorized)
	}
	if xapierr.IsUnauthorized(cause) {
		return fmt.Errorf("xrefresh: session invalid: %w", cause)
	}
	return fmt.Errorf("xrefresh: session invalid: %w", errors.Join(xapierr.ErrUnauthorized, cause))
}

// State 返回当前状态。
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Waiting 返回排队中的等待者数量。
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Stats 返回累计统计。
func (c *Coordinator) Stats() Stats {
	return Stats{
		Success:   c.success.Load(),
		Invalid:   c.invalid.Load(),
		Transient: c.transient.Load(),
		Joined:    c.joined.Load(),
		Reused:    c.reused.Load(),
	}
}
