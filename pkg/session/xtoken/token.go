package xtoken

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// TokenPair access/refresh 令牌对。
type TokenPair struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// IsAuthed access token 非空即视为已登录。
func (p TokenPair) IsAuthed() bool { return p.AccessToken != "" }

// IsZero 两个令牌都为空。
func (p TokenPair) IsZero() bool { return p.AccessToken == "" && p.RefreshToken == "" }

// WithAccess 返回替换 access token 后的令牌对。
// refresh 为空时保留原 refresh token（刷新接口未下发新 refresh token 的情况）。
func (p TokenPair) WithAccess(access, refresh string) TokenPair {
	next := TokenPair{AccessToken: access, RefreshToken: refresh}
	if next.RefreshToken == "" {
		next.RefreshToken = p.RefreshToken
	}
	return next
}

// ParsePair 解析登录/刷新接口返回的令牌。
// 同时接受 accessToken/refreshToken 与 access_token/refresh_token 两种字段名，驼峰优先。
func ParsePair(data []byte) (TokenPair, error) {
	var payload struct {
		AccessToken        string `json:"accessToken"`
		RefreshToken       string `json:"refreshToken"`
		AccessTokenLegacy  string `json:"access_token"`
		RefreshTokenLegacy string `json:"refresh_token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return TokenPair{}, fmt.Errorf("xtoken: parse token payload: %w", err)
	}
	pair := TokenPair{
		AccessToken:  firstNonBlank(payload.AccessToken, payload.AccessTokenLegacy),
		RefreshToken: firstNonBlank(payload.RefreshToken, payload.RefreshTokenLegacy),
	}
	return pair, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// Backend 持久化后端
// =============================================================================

// Backend 令牌持久化后端。实现必须并发安全。
type Backend interface {
	// Load 读取令牌；不存在时返回零值与 nil。
	Load(ctx context.Context) (TokenPair, error)
	// Save 写入令牌。
	Save(ctx context.Context, pair TokenPair) error
	// Clear 删除令牌。
	Clear(ctx context.Context) error
}

// MemoryBackend 进程内后端，不落盘。
type MemoryBackend struct {
	mu   sync.RWMutex
	pair TokenPair
}

// NewMemoryBackend 创建内存后端。
func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

// Load 实现 Backend。
func (b *MemoryBackend) Load(context.Context) (TokenPair, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pair, nil
}

// Save 实现 Backend。
func (b *MemoryBackend) Save(_ context.Context, pair TokenPair) error {
	b.mu.Lock()
	b.pair = pair
	b.mu.Unlock()
	return nil
}

// Clear 实现 Backend。
func (b *MemoryBackend) Clear(context.Context) error {
	b.mu.Lock()
	b.pair = TokenPair{}
	b.mu.Unlock()
	return nil
}
