package xhealth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeClock 手动推进的时间源。
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

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance 推进时间并同步执行到期的定时器。
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

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// recorder 记录钩子调用。
type recorder struct {
	authed atomic.Bool

	mu      sync.Mutex
	reasons []Reason

	probes      atomic.Int32
	probeResult atomic.Int32
	// probeGate 非空时探测阻塞到关闭或 ctx 结束
	probeGate chan struct{}
}

func newRecorder() *recorder {
	r := &recorder{}
	r.authed.Store(true)
	r.probeResult.Store(int32(ProbeOK))
	return r
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		IsAuthed: r.authed.Load,
		Probe: func(ctx context.Context) ProbeResult {
			r.probes.Add(1)
			if r.probeGate != nil {
				select {
				case <-r.probeGate:
				case <-ctx.Done():
					return ProbeOther
				}
			}
			return ProbeResult(r.probeResult.Load())
		},
		ForceLogout: func(_ context.Context, reason Reason) {
			r.mu.Lock()
			r.reasons = append(r.reasons, reason)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) logouts() []Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reason(nil), r.reasons...)
}
