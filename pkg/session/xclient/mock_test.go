package xclient

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xadmin/pkg/session/xenvelope"
	"github.com/omeyang/xadmin/pkg/session/xhealth"
	"github.com/omeyang/xadmin/pkg/session/xnotify"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeEnvelope 以 HTTP status 写出信封。
func writeEnvelope(w http.ResponseWriter, status int, env xenvelope.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env) //nolint:errcheck // 测试辅助
}

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get(HeaderAuthorization), "Bearer ")
}

// harness 一个客户端及其可观察的副作用。
type harness struct {
	client *Client
	toasts *xnotify.Toasts
	nav    *xnotify.MemoryNavigator
}

func (h *harness) store() *xtoken.Store { return h.client.Session().Store() }

func newHarness(t *testing.T, baseURL string, mutate func(*Config), opts ...Option) *harness {
	t.Helper()
	cfg := &Config{BaseURL: baseURL, AllowInsecure: true}
	if mutate != nil {
		mutate(cfg)
	}
	h := &harness{
		toasts: xnotify.NewToasts(),
		nav:    xnotify.NewMemoryNavigator("/system/user"),
	}
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithNotifier(h.toasts),
		WithNavigator(h.nav),
	}, opts...)
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	h.client = c
	return h
}

// newServer 启动测试后端。
func newServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// roundTripFunc 自定义传输。
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func envelopeResponse(r *http.Request, status int, env xenvelope.Envelope) *http.Response {
	body, _ := json.Marshal(env) //nolint:errcheck // 测试辅助
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(body))),
		Request:    r,
	}
}

// =============================================================================
// fakeClock
// =============================================================================

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) xhealth.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}
