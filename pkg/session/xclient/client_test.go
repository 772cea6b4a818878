package xclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xadmin/pkg/context/xctx"
	"github.com/omeyang/xadmin/pkg/observability/xtrace"
	"github.com/omeyang/xadmin/pkg/session/xapierr"
	"github.com/omeyang/xadmin/pkg/session/xenvelope"
	"github.com/omeyang/xadmin/pkg/session/xhealth"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

var (
	tok1 = xtoken.TokenPair{AccessToken: "tok1", RefreshToken: "ref1"}
	ctx  = context.Background()
)

type userPage struct {
	Total int      `json:"total"`
	Rows  []string `json:"rows"`
}

func TestClient_SuccessUnwrapsData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok1", bearer(r))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))
		assert.Equal(t, "2", r.URL.Query().Get("pageNum"))
		writeEnvelope(w, http.StatusOK, xenvelope.Success(userPage{Total: 1, Rows: []string{"admin"}}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	var page userPage
	err := h.client.Get(ctx, "/system/user/list", url.Values{"pageNum": {"2"}}, &page)
	require.NoError(t, err)
	assert.Equal(t, userPage{Total: 1, Rows: []string{"admin"}}, page)
	assert.Empty(t, h.toasts.Items())
	assert.Zero(t, h.client.Session().Dedup().Len())
}

func TestClient_RequestIDPropagated(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(HeaderRequestID)
		writeEnvelope(w, http.StatusOK, xenvelope.Success("pong"))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)

	rctx, err := xctx.WithRequestID(ctx, "req-42")
	require.NoError(t, err)
	var out string
	require.NoError(t, h.client.Get(rctx, "/ping", nil, &out))
	assert.Equal(t, "pong", out)
	assert.Equal(t, "req-42", got)
}

func TestClient_TraceparentSharedByReplay(t *testing.T) {
	var mu sync.Mutex
	var parents []string
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		parents = append(parents, r.Header.Get(xtrace.HeaderTraceparent))
		mu.Unlock()
		if bearer(r) != "tok2" {
			writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "", ""))
			return
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Success(userPage{}))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(xtrace.HeaderTraceparent))
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]string{"accessToken": "tok2"}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	require.NoError(t, h.client.Get(ctx, "/system/user/list", nil, nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, parents, 2)
	trace1, span1, _, ok := xtrace.ParseTraceparent(parents[0])
	require.True(t, ok)
	trace2, span2, _, ok := xtrace.ParseTraceparent(parents[1])
	require.True(t, ok)
	assert.Equal(t, trace1, trace2)
	assert.NotEqual(t, span1, span2)
}

func TestClient_RawPassthrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/raw", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`)) //nolint:errcheck // 测试
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`plain`)) //nolint:errcheck // 测试
	})
	h := newHarness(t, newServer(t, mux).URL, nil)

	var nums []int
	require.NoError(t, h.client.Get(ctx, "/raw", nil, &nums))
	assert.Equal(t, []int{1, 2, 3}, nums)

	var raw []byte
	require.NoError(t, h.client.Get(ctx, "/text", nil, &raw))
	assert.Equal(t, "plain", string(raw))
}

func TestCall(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]any{"id": 1, "username": "admin"}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)

	type user struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	}
	u, err := Call[user](ctx, h.client, &Request{Method: "get", Path: "/system/user/1"})
	require.NoError(t, err)
	assert.Equal(t, user{ID: 1, Username: "admin"}, u)
}

func TestClient_PostJSONBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(t, jsonDecode(r, &body))
		assert.Equal(t, "alice", body["username"])
		writeEnvelope(w, http.StatusOK, xenvelope.Success(nil))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	require.NoError(t, h.client.Post(ctx, "/system/user", map[string]string{"username": "alice"}, nil))
}

// =============================================================================
// 认证
// =============================================================================

func TestClient_SkipAuthStripsHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/captcha", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(HeaderAuthorization))
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]any{"key": "k1"}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	err := h.client.Get(ctx, "/auth/captcha", nil, nil, SkipAuth(), WithHeader(HeaderAuthorization, "Bearer manual"))
	require.NoError(t, err)
}

func TestClient_CallerAuthorizationKept(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "manual", bearer(r))
		writeEnvelope(w, http.StatusOK, xenvelope.Success(nil))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)
	require.NoError(t, h.client.Get(ctx, "/x", nil, nil, WithHeader(HeaderAuthorization, "Bearer manual")))
}

func TestClient_RefreshAndReplay(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != "tok2" {
			writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "", ""))
			return
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Success(userPage{Total: 7}))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "ref1", r.URL.Query().Get("refreshToken"))
		assert.Empty(t, r.Header.Get(HeaderAuthorization))
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]string{"accessToken": "tok2"}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	var page userPage
	require.NoError(t, h.client.Get(ctx, "/system/user/list", nil, &page))
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, xtoken.TokenPair{AccessToken: "tok2", RefreshToken: "ref1"}, h.store().Pair())
	assert.Empty(t, h.nav.History())
}

func TestClient_ConcurrentUnauthorizedSingleRefresh(t *testing.T) {
	const n = 8
	var (
		arrived      atomic.Int32
		refreshCalls atomic.Int32
		release      = make(chan struct{})
		releaseOnce  sync.Once
		h            *harness
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "tok2" {
			writeEnvelope(w, http.StatusOK, xenvelope.Success(r.URL.Query().Get("pageNum")))
			return
		}
		if arrived.Add(1) == n {
			releaseOnce.Do(func() { close(release) })
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "", ""))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		deadline := time.Now().Add(2 * time.Second)
		for h.client.Session().Refresh().Waiting() < n-1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]string{"accessToken": "tok2"}))
	})
	h = newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := url.Values{"pageNum": {strconv.Itoa(i)}}
			errs[i] = h.client.Get(ctx, "/system/user/list", q, &results[i])
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, strconv.Itoa(i), results[i])
	}
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, "tok2", h.store().AccessToken())
}

func TestClient_RefreshInvalidLogsOut(t *testing.T) {
	const n = 4
	var (
		arrived      atomic.Int32
		refreshCalls atomic.Int32
		release      = make(chan struct{})
		releaseOnce  sync.Once
		h            *harness
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, _ *http.Request) {
		if arrived.Add(1) == n {
			releaseOnce.Do(func() { close(release) })
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "", ""))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		deadline := time.Now().Add(2 * time.Second)
		for h.client.Session().Refresh().Waiting() < n-1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "refresh token expired", ""))
	})
	h = newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	var reasons []LogoutReason
	var mu sync.Mutex
	h.client.Session().OnLogout(func(_ context.Context, r LogoutReason) {
		mu.Lock()
		reasons = append(reasons, r)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.client.Get(ctx, "/system/user/list", url.Values{"pageNum": {strconv.Itoa(i)}}, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.True(t, xapierr.IsUnauthorized(err), "got %v", err)
	}
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.False(t, h.store().IsAuthed())
	assert.Equal(t, xtoken.TokenPair{}, h.store().Pair())

	mu.Lock()
	require.NotEmpty(t, reasons)
	assert.Equal(t, LogoutRefreshInvalid, reasons[0])
	mu.Unlock()

	require.NotEmpty(t, h.nav.History())
	assert.Equal(t, "/login?redirect=%2Fsystem%2Fuser", h.nav.Current())
}

func TestClient_HTTP401WithEnvelopeRefreshes(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != "tok2" {
			writeEnvelope(w, http.StatusUnauthorized, xenvelope.Failure(500, "会话已失效", ""))
			return
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Success(userPage{Total: 3}))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]string{"accessToken": "tok2"}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	var page userPage
	require.NoError(t, h.client.Get(ctx, "/system/user/list", nil, &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Empty(t, h.toasts.Items())
	assert.Empty(t, h.nav.History())
}

func TestClient_ReplayUnauthorizedDoesNotRefreshTwice(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/system/role/list", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "", ""))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]string{"accessToken": "tok2"}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	err := h.client.Get(ctx, "/system/role/list", nil, nil)
	require.Error(t, err)
	assert.True(t, xapierr.IsUnauthorized(err))
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.False(t, h.store().IsAuthed())
	assert.Equal(t, "/login?redirect=%2Fsystem%2Fuser", h.nav.Current())
}

func TestClient_TransientRefreshKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "", ""))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		_ = conn.Close() //nolint:errcheck // 模拟连接中断
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	err := h.client.Get(ctx, "/system/user/list", nil, nil)
	require.Error(t, err)
	assert.False(t, xapierr.IsUnauthorized(err))
	assert.True(t, xapierr.IsNetwork(err))
	assert.Equal(t, tok1, h.store().Pair(), "transient refresh failure must keep tokens")
	assert.Empty(t, h.nav.History())
	assert.Equal(t, uint64(1), h.client.Session().Refresh().Stats().Transient)
}

func TestClient_AuthEndpointUnauthorizedSkipsRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "用户名或密码错误", ""))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	err := h.client.Post(ctx, "/auth/login", map[string]string{"username": "a"}, nil, SkipAuth(), SkipAuthRedirect())
	require.Error(t, err)
	apiErr, ok := xapierr.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "用户名或密码错误", apiErr.Message)
	assert.True(t, xapierr.IsUnauthorized(err))
	assert.Zero(t, refreshCalls.Load())
	assert.False(t, h.store().IsAuthed())
	assert.Empty(t, h.nav.History())
}

func TestClient_SkipTokenRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/info", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	err := h.client.Get(ctx, "/auth/info", nil, nil, SkipTokenRefresh())
	assert.True(t, xapierr.IsUnauthorized(err))
	assert.Zero(t, refreshCalls.Load())
	assert.False(t, h.store().IsAuthed())
}

func TestClient_HeaderSync(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/menu/tree", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ref1", r.Header.Get(HeaderRefreshToken))
		w.Header().Set(HeaderAccessToken, "tok9")
		writeEnvelope(w, http.StatusOK, xenvelope.Success([]string{}))
	})
	h := newHarness(t, newServer(t, mux).URL, func(c *Config) { c.TokenHeaderSync = true })
	h.store().Save(ctx, tok1)

	require.NoError(t, h.client.Get(ctx, "/system/menu/tree", nil, nil))
	assert.Equal(t, xtoken.TokenPair{AccessToken: "tok9", RefreshToken: "ref1"}, h.store().Pair())
}

// =============================================================================
// 业务错误
// =============================================================================

func TestClient_BusinessError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/dept/9", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(500, "", "trace-9"))
	})
	mux.HandleFunc("/system/dept", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, xenvelope.Failure(409, "部门名称已存在", ""))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	err := h.client.Get(ctx, "/system/dept/9", nil, nil)
	apiErr, ok := xapierr.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 500, apiErr.Code)
	assert.Equal(t, "系统繁忙，请稍后重试", apiErr.Message)
	assert.Equal(t, "trace-9", apiErr.TraceID)
	assert.Equal(t, "/error/500?traceId=trace-9", h.nav.Current())
	info, ok := h.client.Session().Dispatcher().Errors().ByTraceID("trace-9")
	require.True(t, ok)
	assert.Equal(t, 500, info.Code)

	err = h.client.Post(ctx, "/system/dept", map[string]string{"name": "dup"}, nil)
	apiErr, ok = xapierr.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 409, apiErr.Code)
	assert.Len(t, h.nav.History(), 1, "409 does not redirect")

	items := h.toasts.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "部门名称已存在", items[0].Message)
	assert.True(t, h.store().IsAuthed())
}

func TestClient_BusinessErrorOptOuts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/dict/404", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusNotFound, xenvelope.Failure(404, "", ""))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)

	err := h.client.Get(ctx, "/system/dict/404", nil, nil, SkipErrorToast(), SkipErrorRedirect())
	apiErr, ok := xapierr.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 404, apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	assert.Empty(t, h.toasts.Items())
	assert.Empty(t, h.nav.History())
}

func TestClient_RawHTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gateway", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	h := newHarness(t, newServer(t, mux).URL, nil)

	err := h.client.Get(ctx, "/gateway", nil, nil)
	apiErr, ok := xapierr.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Code)
	assert.Equal(t, "/error/500", h.nav.Current())
}

// =============================================================================
// 去重与取消
// =============================================================================

func TestClient_DedupLastWins(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			close(started)
			<-r.Context().Done()
			return
		}
		writeEnvelope(w, http.StatusOK, xenvelope.Success(int(n)))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	q := url.Values{"pageNum": {"1"}}
	errA := make(chan error, 1)
	go func() { errA <- h.client.Get(ctx, "/system/user/list", q, nil) }()
	<-started

	var got int
	require.NoError(t, h.client.Get(ctx, "/system/user/list", q, &got))
	assert.Equal(t, 2, got)

	err := <-errA
	assert.True(t, xapierr.IsCanceled(err), "got %v", err)
	assert.True(t, errors.Is(err, xapierr.ErrCanceled))
	assert.Empty(t, h.toasts.Items())
	assert.Empty(t, h.nav.History())
	assert.Zero(t, h.client.Session().Dedup().Len())
	assert.Zero(t, h.client.Session().Health().Window().ConsecutiveFailures)
}

func TestClient_DedupLastWinsAcrossRefresh(t *testing.T) {
	var (
		replays        atomic.Int32
		refreshStarted = make(chan struct{})
		releaseRefresh = make(chan struct{})
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/system/user/list", func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) != "tok2" {
			writeEnvelope(w, http.StatusOK, xenvelope.Failure(401, "", ""))
			return
		}
		replays.Add(1)
		writeEnvelope(w, http.StatusOK, xenvelope.Success("ok"))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		close(refreshStarted)
		<-releaseRefresh
		writeEnvelope(w, http.StatusOK, xenvelope.Success(map[string]string{"accessToken": "tok2"}))
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	q := url.Values{"pageNum": {"1"}}
	errA := make(chan error, 1)
	go func() { errA <- h.client.Get(ctx, "/system/user/list", q, nil) }()
	<-refreshStarted

	// B 在 A 等待刷新期间发出，同 key
	type outcome struct {
		got string
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		var got string
		err := h.client.Get(ctx, "/system/user/list", q, &got)
		resB <- outcome{got: got, err: err}
	}()
	require.Eventually(t, func() bool { return h.client.Session().Refresh().Waiting() == 1 },
		2*time.Second, time.Millisecond)
	close(releaseRefresh)

	err := <-errA
	assert.True(t, errors.Is(err, xapierr.ErrCanceled), "got %v", err)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "ok", b.got)
	assert.Equal(t, int32(1), replays.Load(), "superseded request must not replay")
	assert.Empty(t, h.toasts.Items())
	assert.Empty(t, h.nav.History())
	assert.Zero(t, h.client.Session().Dedup().Len())
}

func TestClient_CallerCancelIsSilent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	cctx, cancel := context.WithCancel(ctx)
	time.AfterFunc(20*time.Millisecond, cancel)
	err := h.client.Get(cctx, "/slow", nil, nil)
	assert.True(t, xapierr.IsCanceled(err))
	assert.Empty(t, h.toasts.Items())
}

// =============================================================================
// 网络健康
// =============================================================================

func TestClient_TimeoutFeedsMonitor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	err := h.client.Get(ctx, "/slow", nil, nil, WithTimeout(30*time.Millisecond))
	require.Error(t, err)
	assert.True(t, xapierr.IsTimeout(err))
	assert.False(t, xapierr.IsCanceled(err))
	assert.Equal(t, 1, h.client.Session().Health().Window().ConsecutiveFailures)

	items := h.toasts.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "请求超时", items[0].Message)
}

func TestClient_ConsecutiveNetworkFailuresForceLogout(t *testing.T) {
	srv := newServer(t, http.NewServeMux())
	base := srv.URL
	srv.Close()

	h := newHarness(t, base, nil)
	h.store().Save(ctx, tok1)

	var reason LogoutReason
	h.client.Session().OnLogout(func(_ context.Context, r LogoutReason) { reason = r })

	for i := range 3 {
		err := h.client.Get(ctx, "/system/user/list", nil, nil)
		require.Error(t, err)
		assert.True(t, xapierr.IsNetwork(err), "attempt %d: %v", i, err)
	}

	assert.False(t, h.store().IsAuthed())
	assert.Equal(t, LogoutConsecutiveFailures, reason)
	assert.Equal(t, "/login?redirect=%2Fsystem%2Fuser", h.nav.Current())
	assert.Zero(t, h.client.Session().Health().Window().ConsecutiveFailures)
}

func TestClient_SuccessResetsFailureWindow(t *testing.T) {
	var down atomic.Bool
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if down.Load() {
			return nil, errors.New("connection refused")
		}
		return envelopeResponse(r, http.StatusOK, xenvelope.Success("ok")), nil
	})
	h := newHarness(t, "http://admin.test", nil, WithHTTPClient(&http.Client{Transport: transport}))
	h.store().Save(ctx, tok1)
	health := h.client.Session().Health()

	down.Store(true)
	for range 2 {
		require.Error(t, h.client.Get(ctx, "/a", nil, nil))
	}
	assert.Equal(t, 2, health.Window().ConsecutiveFailures)

	down.Store(false)
	require.NoError(t, h.client.Get(ctx, "/a", nil, nil))
	assert.Zero(t, health.Window().ConsecutiveFailures)
	assert.True(t, health.Window().FirstFailureAt.IsZero())

	down.Store(true)
	for range 2 {
		require.Error(t, h.client.Get(ctx, "/a", nil, nil))
	}
	assert.True(t, h.store().IsAuthed(), "window was reset, two failures stay below threshold")
}

func TestClient_OfflineProbeUnauthorizedForcesLogout(t *testing.T) {
	var probes atomic.Int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == PathInfo {
			probes.Add(1)
			return envelopeResponse(r, http.StatusOK, xenvelope.Failure(401, "", "")), nil
		}
		return nil, errors.New("connection refused")
	})
	clock := newFakeClock()
	h := newHarness(t, "http://admin.test", nil,
		WithHTTPClient(&http.Client{Transport: transport}),
		WithClock(clock),
	)
	h.store().Save(ctx, tok1)

	require.Error(t, h.client.Get(ctx, "/system/user/list", nil, nil))
	assert.True(t, h.store().IsAuthed())

	clock.Advance(xhealth.DefaultMaxOfflineDuration)

	require.Eventually(t, func() bool { return !h.store().IsAuthed() }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), probes.Load())
	require.Eventually(t, func() bool {
		return h.nav.Current() == "/login?redirect=%2Fsystem%2Fuser"
	}, 2*time.Second, time.Millisecond)
}

func TestClient_OfflineProbeOtherKeepsSession(t *testing.T) {
	var probes atomic.Int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == PathInfo {
			probes.Add(1)
		}
		return nil, errors.New("connection refused")
	})
	clock := newFakeClock()
	h := newHarness(t, "http://admin.test", nil,
		WithHTTPClient(&http.Client{Transport: transport}),
		WithClock(clock),
	)
	h.store().Save(ctx, tok1)
	health := h.client.Session().Health()

	require.Error(t, h.client.Get(ctx, "/system/user/list", nil, nil))
	clock.Advance(xhealth.DefaultMaxOfflineDuration)

	require.Eventually(t, func() bool {
		return probes.Load() == 1 && !health.Window().Probing
	}, 2*time.Second, time.Millisecond)
	assert.True(t, h.store().IsAuthed())
	assert.Zero(t, health.Window().ConsecutiveFailures)
}

// =============================================================================
// 生命周期
// =============================================================================

func TestClient_LogoutCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(_ http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})
	h := newHarness(t, newServer(t, mux).URL, nil)
	h.store().Save(ctx, tok1)

	errc := make(chan error, 1)
	go func() { errc <- h.client.Get(ctx, "/slow", nil, nil) }()
	<-started

	h.client.Session().Logout(ctx, LogoutUser)
	assert.True(t, xapierr.IsCanceled(<-errc))
	assert.False(t, h.store().IsAuthed())
}

func TestClient_Closed(t *testing.T) {
	h := newHarness(t, "http://admin.test", nil)
	h.client.Close()
	assert.ErrorIs(t, h.client.Get(ctx, "/x", nil, nil), ErrClosed)
}

func TestClient_InvalidRequest(t *testing.T) {
	h := newHarness(t, "http://admin.test", nil)
	assert.ErrorIs(t, h.client.Do(ctx, nil, nil), ErrNilRequest)
	assert.ErrorIs(t, h.client.Get(ctx, "system/user", nil, nil), ErrInvalidPath)
}

func TestClient_HydratesFromBackend(t *testing.T) {
	backend := xtoken.NewMemoryBackend()
	require.NoError(t, backend.Save(ctx, tok1))

	mux := http.NewServeMux()
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok1", bearer(r))
		writeEnvelope(w, http.StatusOK, xenvelope.Success(nil))
	})
	h := newHarness(t, newServer(t, mux).URL, nil, WithTokenBackend(backend))
	require.NoError(t, h.client.Get(ctx, "/x", nil, nil))
	assert.True(t, h.store().Hydrated())
}
