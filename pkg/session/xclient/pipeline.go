package xclient

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/omeyang/xadmin/pkg/observability/xtrace"
	"github.com/omeyang/xadmin/pkg/session/xenvelope"
)

// 内置阶段名称。
const (
	StageTrace     = "trace"
	StageAuth      = "auth"
	StageTokenSync = "token-sync"
	StageEnvelope  = "envelope"
)

// Exchange 一次发送在流水线中的状态。
// 请求阶段可以修改 HTTP；响应阶段可以读取 StatusCode/Header/Body 并写入 Result。
type Exchange struct {
	Request *Request
	HTTP    *http.Request
	// Retried 是否为刷新后的重放。
	Retried bool

	StatusCode int
	Header     http.Header
	Body       []byte
	Result     xenvelope.Result
}

// StageFunc 流水线阶段，返回错误时短路后续阶段。
type StageFunc func(ctx context.Context, ex *Exchange) error

type stage struct {
	name string
	fn   StageFunc
}

// Pipeline 有序的请求/响应阶段列表。并发安全，执行时使用快照。
type Pipeline struct {
	mu       sync.RWMutex
	request  []stage
	response []stage
}

// StageError 阶段返回的错误。
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("xclient: stage %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Use 追加请求阶段。
func (p *Pipeline) Use(name string, fn StageFunc) *Pipeline {
	if fn == nil {
		return p
	}
	p.mu.Lock()
	p.request = append(p.request, stage{name: name, fn: fn})
	p.mu.Unlock()
	return p
}

// UseResponse 追加响应阶段。
func (p *Pipeline) UseResponse(name string, fn StageFunc) *Pipeline {
	if fn == nil {
		return p
	}
	p.mu.Lock()
	p.response = append(p.response, stage{name: name, fn: fn})
	p.mu.Unlock()
	return p
}

// Stages 返回请求阶段与响应阶段的名称，按执行顺序。
func (p *Pipeline) Stages() (request, response []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.request {
		request = append(request, s.name)
	}
	for _, s := range p.response {
		response = append(response, s.name)
	}
	return request, response
}

// RunRequest 依次执行请求阶段。
func (p *Pipeline) RunRequest(ctx context.Context, ex *Exchange) error {
	p.mu.RLock()
	stages := slices.Clone(p.request)
	p.mu.RUnlock()
	return run(ctx, stages, ex)
}

// RunResponse 依次执行响应阶段。
func (p *Pipeline) RunResponse(ctx context.Context, ex *Exchange) error {
	p.mu.RLock()
	stages := slices.Clone(p.response)
	p.mu.RUnlock()
	return run(ctx, stages, ex)
}

func run(ctx context.Context, stages []stage, ex *Exchange) error {
	for _, s := range stages {
		if err := s.fn(ctx, ex); err != nil {
			return &StageError{Stage: s.name, Err: err}
		}
	}
	return nil
}

// =============================================================================
// 内置阶段
// =============================================================================

// traceStage 写入 traceparent 与 request id。调用方已设置 traceparent 时不覆盖。
func traceStage(ctx context.Context, ex *Exchange) error {
	if ex.HTTP.Header.Get(xtrace.HeaderTraceparent) != "" {
		return nil
	}
	xtrace.Inject(ctx, ex.HTTP.Header)
	return nil
}

// authStage 附加 Bearer token。只改请求头，不阻塞、不做 I/O。
func (c *Client) authStage(_ context.Context, ex *Exchange) error {
	if ex.Request.Options.SkipAuth {
		ex.HTTP.Header.Del(HeaderAuthorization)
		ex.HTTP.Header.Del(HeaderRefreshToken)
		return nil
	}
	pair := c.session.store.Pair()
	if pair.AccessToken != "" && ex.HTTP.Header.Get(HeaderAuthorization) == "" {
		ex.HTTP.Header.Set(HeaderAuthorization, "Bearer "+pair.AccessToken)
	}
	if c.cfg.TokenHeaderSync && pair.RefreshToken != "" && ex.HTTP.Header.Get(HeaderRefreshToken) == "" {
		ex.HTTP.Header.Set(HeaderRefreshToken, pair.RefreshToken)
	}
	return nil
}

// tokenSyncStage 把响应头中的令牌写回存储。
func (c *Client) tokenSyncStage(ctx context.Context, ex *Exchange) error {
	if !c.cfg.TokenHeaderSync || ex.Header == nil {
		return nil
	}
	access := ex.Header.Get(HeaderAccessToken)
	if access == "" {
		return nil
	}
	store := c.session.store
	next := store.Pair().WithAccess(access, ex.Header.Get(HeaderRefreshToken))
	store.Save(context.WithoutCancel(ctx), next)
	c.logger.DebugContext(ctx, "xclient: tokens synced from response headers")
	return nil
}

// envelopeStage 解析信封。
func envelopeStage(_ context.Context, ex *Exchange) error {
	ex.Result = xenvelope.Decode(ex.Body)
	return nil
}
