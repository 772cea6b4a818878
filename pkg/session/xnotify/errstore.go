package xnotify

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrorInfo 错误页展示的错误详情。
type ErrorInfo struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	TraceID   string `json:"traceId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// 错误详情缓存默认参数。
const (
	DefaultErrorStoreSize = 64
	DefaultErrorStoreTTL  = 30 * time.Minute
)

// ErrorStore 保存最近一次错误，并按 trace id 缓存近期错误。
type ErrorStore struct {
	mu   sync.RWMutex
	last *ErrorInfo

	byTrace *expirable.LRU[string, ErrorInfo]
}

// NewErrorStore 创建 ErrorStore。size/ttl 非正时使用默认值。
func NewErrorStore(size int, ttl time.Duration) *ErrorStore {
	if size <= 0 {
		size = DefaultErrorStoreSize
	}
	if ttl <= 0 {
		ttl = DefaultErrorStoreTTL
	}
	return &ErrorStore{byTrace: expirable.NewLRU[string, ErrorInfo](size, nil, ttl)}
}

// Set 记录错误。
func (s *ErrorStore) Set(info ErrorInfo) {
	s.mu.Lock()
	s.last = &info
	s.mu.Unlock()
	if info.TraceID != "" {
		s.byTrace.Add(info.TraceID, info)
	}
}

// Last 返回最近一次错误。
func (s *ErrorStore) Last() (ErrorInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return ErrorInfo{}, false
	}
	return *s.last, true
}

// ByTraceID 按 trace id 查找错误。
func (s *ErrorStore) ByTraceID(traceID string) (ErrorInfo, bool) {
	return s.byTrace.Get(traceID)
}

// Clear 清除最近一次错误。按 trace id 的缓存保留至过期。
func (s *ErrorStore) Clear() {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}
