package xtoken

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// =============================================================================
// Store
// =============================================================================

// Store 令牌存储：内存读路径 + 后端持久化。
//
// 读操作（AccessToken/RefreshToken/Pair/IsAuthed）只读内存，不做 I/O。
// 首次使用前调用 Hydrate 从后端加载；并发调用共享同一次加载。
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu       sync.RWMutex
	pair     TokenPair
	hydrated bool
	// gen 每次写入递增，加载结果只在期间无写入时生效
	gen uint64

	// writeMu 串行化后端写入；只有仍是最新一代的写入才落盘
	writeMu sync.Mutex

	sf singleflight.Group

	listenersMu sync.Mutex
	listeners   map[int]func(TokenPair)
	nextID      int
}

// StoreOption Store 选项。
type StoreOption func(*Store)

// WithLogger 设置日志记录器，nil 时使用 slog.Default()。
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore 创建 Store。backend 为 nil 时使用内存后端。
func NewStore(backend Backend, opts ...StoreOption) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &Store{
		backend:   backend,
		logger:    slog.Default(),
		listeners: make(map[int]func(TokenPair)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Hydrate 从后端加载令牌，幂等。
// 加载失败记录日志并视为无令牌，不返回错误。
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.RLock()
	done := s.hydrated
	s.mu.RUnlock()
	if done {
		return
	}

	// 不让单个调用方的取消中断共享加载
	loadCtx := context.WithoutCancel(ctx)
	_, _, _ = s.sf.Do("hydrate", func() (any, error) {
		s.mu.RLock()
		if s.hydrated {
			s.mu.RUnlock()
			return nil, nil
		}
		gen := s.gen
		s.mu.RUnlock()

		pair, err := s.backend.Load(loadCtx)
		if err != nil {
			s.logger.Warn("xtoken: load tokens failed, treating as signed out",
				slog.String("error", err.Error()))
			pair = TokenPair{}
		}

		s.mu.Lock()
		if !s.hydrated && s.gen == gen {
			s.pair = pair
		}
		s.hydrated = true
		s.mu.Unlock()
		return nil, nil
	})
}

// Load 确保已加载并返回当前令牌对。
func (s *Store) Load(ctx context.Context) TokenPair {
	s.Hydrate(ctx)
	return s.Pair()
}

// Hydrated 是否已完成加载。
func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Save 更新令牌：先写内存，再持久化。持久化失败只记录日志。
func (s *Store) Save(ctx context.Context, pair TokenPair) {
	gen := s.set(pair)
	s.persist(gen, func() error { return s.backend.Save(ctx, pair) }, "xtoken: persist tokens failed")
}

// Clear 清空令牌。
func (s *Store) Clear(ctx context.Context) {
	gen := s.set(TokenPair{})
	s.persist(gen, func() error { return s.backend.Clear(ctx) }, "xtoken: clear persisted tokens failed")
}

func (s *Store) set(pair TokenPair) uint64 {
	s.mu.Lock()
	s.pair = pair
	s.hydrated = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.notify(pair)
	return gen
}

// persist 在 writeMu 下执行后端写入。已被更新的写入取代时跳过，
// 后端最终内容与内存中最后一次写入一致。
func (s *Store) persist(gen uint64, write func() error, msg string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	current := s.gen
	s.mu.RUnlock()
	if current != gen {
		return
	}
	if err := write(); err != nil {
		s.logger.Warn(msg, slog.String("error", err.Error()))
	}
}

// AccessToken 返回 access token，缺失时为空串。
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken
}

// RefreshToken 返回 refresh token，缺失时为空串。
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken
}

// Pair 返回当前令牌对。
func (s *Store) Pair() TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// IsAuthed access token 非空即为已登录。
func (s *Store) IsAuthed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.IsAuthed()
}

// OnChange 注册令牌变化回调，返回取消注册函数。
// 回调在写入方的 goroutine 中同步执行，不得回调 Store 的写方法。
func (s *Store) OnChange(fn func(TokenPair)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(pair TokenPair) {
	s.listenersMu.Lock()
	fns := make([]func(TokenPair), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(pair)
	}
}
