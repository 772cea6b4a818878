package xtoken

import (
	"context"
	"sync"
	"sync/atomic"
)

// mockBackend 可控的 Backend 实现。
type mockBackend struct {
	mu   sync.Mutex
	pair TokenPair

	loadErr  error
	saveErr  error
	clearErr error

	// gate 非空时 Load 阻塞到 gate 关闭
	gate chan struct{}
	// saveGate 非空时 Save 先向 saveStarted 报到，再阻塞到 saveGate 关闭
	saveGate    chan struct{}
	saveStarted chan struct{}

	loads  atomic.Int32
	saves  atomic.Int32
	clears atomic.Int32
}

func (m *mockBackend) Load(ctx context.Context) (TokenPair, error) {
	m.loads.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return TokenPair{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return TokenPair{}, m.loadErr
	}
	return m.pair, nil
}

func (m *mockBackend) Save(_ context.Context, pair TokenPair) error {
	m.saves.Add(1)
	if m.saveGate != nil {
		if m.saveStarted != nil {
			m.saveStarted <- struct{}{}
		}
		<-m.saveGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.pair = pair
	return nil
}

func (m *mockBackend) Clear(context.Context) error {
	m.clears.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.pair = TokenPair{}
	return nil
}

func (m *mockBackend) stored() TokenPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair
}
