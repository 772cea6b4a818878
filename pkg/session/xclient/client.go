package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omeyang/xadmin/pkg/context/xctx"
	"github.com/omeyang/xadmin/pkg/observability/xmetrics"
	"github.com/omeyang/xadmin/pkg/observability/xtrace"
	"github.com/omeyang/xadmin/pkg/session/xapierr"
	"github.com/omeyang/xadmin/pkg/session/xdedup"
	"github.com/omeyang/xadmin/pkg/session/xenvelope"
	"github.com/omeyang/xadmin/pkg/session/xhealth"
	"github.com/omeyang/xadmin/pkg/session/xnotify"
	"github.com/omeyang/xadmin/pkg/session/xrefresh"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// Client 会话化 HTTP 客户端。并发安全。
type Client struct {
	cfg      *Config
	http     *http.Client
	session  *Session
	pipeline *Pipeline
	logger   *slog.Logger
	observer xmetrics.Observer
}

// New 创建客户端及其会话。cfg 会被复制，调用方后续修改不影响客户端。
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	httpClient := o.HTTPClient
	if httpClient == nil {
		tlsConfig, err := cfg.TLS.BuildTLSConfig()
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}}
	}

	backend := o.TokenBackend
	if backend == nil {
		backend = xtoken.NewMemoryBackend()
	}

	c := &Client{
		cfg:      cfg,
		http:     httpClient,
		pipeline: &Pipeline{},
		logger:   o.Logger,
		observer: o.Observer,
	}

	store := xtoken.NewStore(backend, xtoken.WithLogger(o.Logger))
	s := &Session{
		store: store,
		dedup: xdedup.New(),
		dispatch: xnotify.NewDispatcher(
			xnotify.WithNotifier(o.Notifier),
			xnotify.WithNavigator(o.Navigator),
			xnotify.WithErrorStore(o.ErrorStore),
			xnotify.WithLogger(o.Logger),
		),
		logger: o.Logger,
	}
	s.refresh = xrefresh.New(store,
		xrefresh.WithOnInvalid(func(ctx context.Context, _ error) {
			s.Logout(ctx, LogoutRefreshInvalid)
		}),
		xrefresh.WithTimeout(cfg.RefreshTimeout),
		xrefresh.WithLogger(o.Logger),
		xrefresh.WithObserver(o.Observer),
	)
	monitor, err := xhealth.New(cfg.Health, xhealth.Hooks{
		IsAuthed:    store.IsAuthed,
		Probe:       c.probe,
		ForceLogout: c.forceLogout,
	},
		xhealth.WithClock(o.Clock),
		xhealth.WithLogger(o.Logger),
		xhealth.WithObserver(o.Observer),
	)
	if err != nil {
		return nil, err
	}
	s.health = monitor
	c.session = s

	c.pipeline.
		Use(StageTrace, traceStage).
		Use(StageAuth, c.authStage).
		UseResponse(StageTokenSync, c.tokenSyncStage).
		UseResponse(StageEnvelope, envelopeStage)

	return c, nil
}

// Session 返回会话。
func (c *Client) Session() *Session { return c.session }

// Pipeline 返回流水线，可追加自定义阶段。
func (c *Client) Pipeline() *Pipeline { return c.pipeline }

// Config 返回配置副本。
func (c *Client) Config() *Config { return c.cfg.Clone() }

// Close 关闭会话。
func (c *Client) Close() { c.session.Close() }

// =============================================================================
// 调用入口
// =============================================================================

// Get 发送 GET 请求。
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any, opts ...CallOption) error {
	return c.Do(ctx, buildRequest(http.MethodGet, path, query, nil, opts), out)
}

// Post 发送 POST 请求。
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, buildRequest(http.MethodPost, path, nil, body, opts), out)
}

// Put 发送 PUT 请求。
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, buildRequest(http.MethodPut, path, nil, body, opts), out)
}

// Patch 发送 PATCH 请求。
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, buildRequest(http.MethodPatch, path, nil, body, opts), out)
}

// Delete 发送 DELETE 请求。
func (c *Client) Delete(ctx context.Context, path string, query url.Values, out any, opts ...CallOption) error {
	return c.Do(ctx, buildRequest(http.MethodDelete, path, query, nil, opts), out)
}

// Call 发送请求并把 data 解码为 T。
func Call[T any](ctx context.Context, c *Client, req *Request) (T, error) {
	var out T
	err := c.Do(ctx, req, &out)
	return out, err
}

func buildRequest(method, path string, query url.Values, body any, opts []CallOption) *Request {
	req := &Request{Method: method, Path: path, Query: query, Body: body}
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	return req
}

// call 一次调用在重放之间共享的部分。
type call struct {
	req         *Request
	method      string
	body        []byte
	contentType string
}

// Do 执行请求，成功时把 data（非信封响应为原始响应体）解码到 out。
//
// 返回的错误可用 xapierr 的判定函数分类：
// 被取代或取消时 IsCanceled 为真，且不产生任何提示或跳转。
func (c *Client) Do(ctx context.Context, req *Request, out any) (err error) {
	if req == nil {
		return ErrNilRequest
	}
	if c.session.isClosed() {
		return ErrClosed
	}
	if !strings.HasPrefix(req.Path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, req.Path)
	}
	// 同一次调用的重放与刷新共用 trace id 与 request id
	if rctx, ctxErr := xctx.EnsureRequestID(ctx); ctxErr == nil {
		ctx = rctx
	}
	if rctx, ctxErr := xctx.EnsureTraceID(ctx); ctxErr == nil {
		ctx = rctx
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpRequest,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String(MetricsAttrHTTPMethod, method),
			xmetrics.String(MetricsAttrHTTPPath, routePath(req.Path)),
		},
	})
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{
			xmetrics.String(MetricsAttrResult, xapierr.Classify(err).String()),
		}})
	}()

	c.session.store.Hydrate(ctx)

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return err
	}

	cl := call{req: req, method: method, body: body, contentType: contentType}

	// 去重条目在等待刷新与重放期间保持登记
	if !req.Options.SkipDedup {
		key := xdedup.Key(method, c.cfg.BaseURL, req.Path, req.Query, body)
		var release xdedup.Release
		ctx, release = c.session.dedup.Acquire(ctx, key)
		defer release()
	}

	res, err := c.dispatch(ctx, cl, false)
	if err != nil {
		return err
	}
	return decodeInto(res, out)
}

// dispatch 发送一次并分类结果。retried 为 true 表示刷新后的重放。
func (c *Client) dispatch(ctx context.Context, cl call, retried bool) (xenvelope.Result, error) {
	ex, err := c.exchange(ctx, cl, retried)
	if err != nil {
		return xenvelope.Result{}, c.fail(ctx, cl.req, err)
	}
	return c.classify(ctx, cl, ex)
}

// exchange 请求阶段 → 传输 → 响应阶段。ctx 已带去重取消。
func (c *Client) exchange(ctx context.Context, cl call, retried bool) (*Exchange, error) {
	req := cl.req
	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.newHTTPRequest(tctx, cl.method, req.Path, req.Query, cl.body, cl.contentType, req.Header)
	if err != nil {
		return nil, err
	}
	ex := &Exchange{Request: req, HTTP: httpReq, Retried: retried}
	if err := c.pipeline.RunRequest(tctx, ex); err != nil {
		return nil, err
	}

	ex.StatusCode, ex.Header, ex.Body, err = c.send(tctx, httpReq)
	if err != nil {
		return nil, err
	}
	if err := c.pipeline.RunResponse(tctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

// fail 处理未拿到可分类响应的失败。
func (c *Client) fail(ctx context.Context, req *Request, err error) error {
	switch {
	case xapierr.IsCanceled(err):
		c.logger.DebugContext(ctx, "xclient: request canceled",
			slog.String("path", routePath(req.Path)), slog.String("error", err.Error()))
	case xapierr.IsNetwork(err):
		c.logger.WarnContext(ctx, "xclient: network failure",
			slog.String("path", routePath(req.Path)), slog.String("error", err.Error()))
		c.session.health.RecordFailure(ctx, err)
		c.session.dispatch.NetworkError(ctx, err, req.Options.flags())
	default:
		c.logger.WarnContext(ctx, "xclient: request failed",
			slog.String("path", routePath(req.Path)), slog.String("error", err.Error()))
	}
	return err
}

// classify 按信封结果决定返回值与副作用。
func (c *Client) classify(ctx context.Context, cl call, ex *Exchange) (xenvelope.Result, error) {
	res := ex.Result
	flags := cl.req.Options.flags()

	switch {
	case res.Kind == xenvelope.KindUnauthorized,
		ex.StatusCode == http.StatusUnauthorized:
		return c.unauthorized(ctx, cl, ex)

	case res.Kind == xenvelope.KindBusinessError:
		apiErr := &xapierr.APIError{
			Code:       res.Code,
			HTTPStatus: ex.StatusCode,
			Message:    res.Message,
			TraceID:    res.TraceID,
			Timestamp:  res.Timestamp,
		}
		c.session.dispatch.BusinessError(ctx, apiErr, flags)
		return res, apiErr

	case res.Kind == xenvelope.KindRaw && ex.StatusCode >= http.StatusBadRequest:
		apiErr := &xapierr.APIError{
			Code:       ex.StatusCode,
			HTTPStatus: ex.StatusCode,
			Message:    xenvelope.DefaultMessage(ex.StatusCode),
		}
		c.session.dispatch.BusinessError(ctx, apiErr, flags)
		return res, apiErr

	default:
		c.session.health.RecordSuccess()
		return res, nil
	}
}

// unauthorized 刷新后重放一次；无法刷新时登出。
func (c *Client) unauthorized(ctx context.Context, cl call, ex *Exchange) (xenvelope.Result, error) {
	req := cl.req
	flags := req.Options.flags()

	if c.cfg.IsAuthPath(req.Path) || req.Options.SkipTokenRefresh || ex.Retried {
		msg := ex.Result.Message
		if msg == "" {
			msg = xenvelope.DefaultMessage(xenvelope.CodeUnauthorized)
		}
		c.session.Logout(ctx, LogoutUnauthorized)
		c.session.dispatch.Unauthorized(ctx, flags)
		return xenvelope.Result{}, &xapierr.APIError{
			Code:       xenvelope.CodeUnauthorized,
			HTTPStatus: ex.StatusCode,
			Message:    msg,
			TraceID:    ex.Result.TraceID,
		}
	}

	stale := strings.TrimPrefix(ex.HTTP.Header.Get(HeaderAuthorization), "Bearer ")
	if _, err := c.session.refresh.RefreshFrom(ctx, stale, c.refreshTokens); err != nil {
		switch {
		case xapierr.IsCanceled(err):
		case xapierr.IsUnauthorized(err):
			c.session.dispatch.Unauthorized(ctx, flags)
		case xapierr.IsNetwork(err):
			c.session.dispatch.NetworkError(ctx, err, flags)
		default:
			if apiErr, ok := xapierr.AsAPIError(err); ok {
				c.session.dispatch.BusinessError(ctx, apiErr, xnotify.Flags{
					SkipErrorToast:    flags.SkipErrorToast,
					SkipErrorRedirect: true,
				})
			}
		}
		return xenvelope.Result{}, err
	}
	// 等待刷新期间被同 key 新请求取代
	if ctx.Err() != nil {
		return xenvelope.Result{}, c.fail(ctx, req, fmt.Errorf("xclient: replay %s: %w", routePath(req.Path), context.Cause(ctx)))
	}

	return c.dispatch(ctx, cl, true)
}

// =============================================================================
// 刷新与探测
// =============================================================================

// refreshTokens POST {RefreshPath}?refreshToken=rt，不携带 Authorization。
func (c *Client) refreshTokens(ctx context.Context, refreshToken string) (pair xtoken.TokenPair, err error) {
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpRefresh,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String(MetricsAttrHTTPPath, c.cfg.RefreshPath)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	q := url.Values{"refreshToken": {refreshToken}}
	httpReq, err := c.newHTTPRequest(ctx, http.MethodPost, c.cfg.RefreshPath, q, nil, "", nil)
	if err != nil {
		return xtoken.TokenPair{}, err
	}
	xtrace.Inject(ctx, httpReq.Header)

	status, _, raw, err := c.send(ctx, httpReq)
	if err != nil {
		if xapierr.IsNetwork(err) {
			c.session.health.RecordFailure(ctx, err)
		}
		return xtoken.TokenPair{}, err
	}

	res := xenvelope.Decode(raw)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden,
		res.Kind == xenvelope.KindUnauthorized,
		res.Kind == xenvelope.KindBusinessError && res.Code == xenvelope.CodeAccessDenied:
		return xtoken.TokenPair{}, fmt.Errorf("xclient: refresh: %w", xapierr.ErrRefreshRejected)
	case res.Kind == xenvelope.KindBusinessError:
		return xtoken.TokenPair{}, &xapierr.APIError{
			Code: res.Code, HTTPStatus: status, Message: res.Message, TraceID: res.TraceID, Timestamp: res.Timestamp,
		}
	case res.Kind == xenvelope.KindRaw && status >= http.StatusBadRequest:
		return xtoken.TokenPair{}, &xapierr.APIError{
			Code: status, HTTPStatus: status, Message: xenvelope.DefaultMessage(status),
		}
	}
	c.session.health.RecordSuccess()

	pair, perr := xtoken.ParsePair(res.Data)
	if perr != nil {
		// 无法识别的成功响应按未下发 access token 处理
		c.logger.WarnContext(ctx, "xclient: malformed refresh payload", slog.String("error", perr.Error()))
		return xtoken.TokenPair{}, nil
	}
	return pair, nil
}

// probe GET {ProbePath}，只判定结果，不产生副作用。
func (c *Client) probe(ctx context.Context) (result xhealth.ProbeResult) {
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpProbe,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String(MetricsAttrHTTPPath, c.cfg.ProbePath)},
	})
	defer func() {
		span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.String(MetricsAttrResult, result.String())}})
	}()

	httpReq, err := c.newHTTPRequest(ctx, http.MethodGet, c.cfg.ProbePath, nil, nil, "", nil)
	if err != nil {
		return xhealth.ProbeOther
	}
	xtrace.Inject(ctx, httpReq.Header)
	if token := c.session.store.AccessToken(); token != "" {
		httpReq.Header.Set(HeaderAuthorization, "Bearer "+token)
	}

	status, _, raw, err := c.send(ctx, httpReq)
	if err != nil {
		return xhealth.ProbeOther
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return xhealth.ProbeUnauthorized
	}
	res := xenvelope.Decode(raw)
	switch res.Kind {
	case xenvelope.KindSuccess:
		return xhealth.ProbeOK
	case xenvelope.KindUnauthorized:
		return xhealth.ProbeUnauthorized
	case xenvelope.KindBusinessError:
		if res.Code == xenvelope.CodeAccessDenied {
			return xhealth.ProbeUnauthorized
		}
		return xhealth.ProbeOther
	default:
		if status < http.StatusBadRequest {
			return xhealth.ProbeOK
		}
		return xhealth.ProbeOther
	}
}

// forceLogout 健康监控触发的强制登出：清空会话并跳转登录页。
func (c *Client) forceLogout(ctx context.Context, reason xhealth.Reason) {
	c.session.Logout(ctx, LogoutReason(reason))
	c.session.dispatch.Unauthorized(ctx, xnotify.Flags{})
}

// =============================================================================
// 解码
// =============================================================================

// decodeInto 把结果数据写入 out。out 为 *[]byte 或 *json.RawMessage 时原样复制。
func decodeInto(res xenvelope.Result, out any) error {
	if out == nil {
		return nil
	}
	switch v := out.(type) {
	case *[]byte:
		*v = append([]byte(nil), res.Data...)
		return nil
	case *json.RawMessage:
		*v = append(json.RawMessage(nil), res.Data...)
		return nil
	}
	if err := res.Unmarshal(out); err != nil {
		if errors.Is(err, xenvelope.ErrNoData) {
			return nil
		}
		return fmt.Errorf("xclient: unmarshal response failed: %w", err)
	}
	return nil
}
