package xtoken

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// DefaultRedisKey Redis 后端默认 Hash key。
const DefaultRedisKey = "quantum:auth"

const (
	fieldAccess  = "accessToken"
	fieldRefresh = "refreshToken"
)

// ErrBackendUnavailable 表示后端熔断中，调用被短路。
var ErrBackendUnavailable = errors.New("xtoken: backend unavailable")

// RedisBackend 以 Redis Hash 保存令牌，适合多个 CLI/服务实例共享会话。
//
// 写操作带重试，所有调用经过熔断器：Redis 不可用时快速失败，不拖慢请求。
type RedisBackend struct {
	client   redis.UniversalClient
	key      string
	ttl      time.Duration
	sealer   Sealer
	attempts uint
	delay    time.Duration
	cb       *gobreaker.CircuitBreaker[any]
}

// RedisOption Redis 后端选项。
type RedisOption func(*redisOptions)

type redisOptions struct {
	key             string
	ttl             time.Duration
	sealer          Sealer
	attempts        uint
	delay           time.Duration
	failures        uint32
	breakerTimeout  time.Duration
	onBreakerChange func(from, to gobreaker.State)
}

// WithRedisKey 设置 Hash key。
func WithRedisKey(key string) RedisOption {
	return func(o *redisOptions) {
		if key != "" {
			o.key = key
		}
	}
}

// WithRedisTTL 设置令牌过期时间，0 表示不过期。
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(o *redisOptions) {
		if ttl >= 0 {
			o.ttl = ttl
		}
	}
}

// WithRedisSealer 设置字段加密器。
func WithRedisSealer(s Sealer) RedisOption {
	return func(o *redisOptions) {
		o.sealer = s
	}
}

// WithRedisRetry 设置写操作总尝试次数与间隔。
func WithRedisRetry(attempts uint, delay time.Duration) RedisOption {
	return func(o *redisOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if delay >= 0 {
			o.delay = delay
		}
	}
}

// WithRedisBreaker 设置连续失败阈值与熔断恢复时间。
func WithRedisBreaker(failures uint32, timeout time.Duration) RedisOption {
	return func(o *redisOptions) {
		if failures > 0 {
			o.failures = failures
		}
		if timeout > 0 {
			o.breakerTimeout = timeout
		}
	}
}

// WithRedisBreakerStateChange 设置熔断状态变化回调。
func WithRedisBreakerStateChange(fn func(from, to gobreaker.State)) RedisOption {
	return func(o *redisOptions) {
		o.onBreakerChange = fn
	}
}

// NewRedisBackend 创建 Redis 后端。
func NewRedisBackend(client redis.UniversalClient, opts ...RedisOption) (*RedisBackend, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := redisOptions{
		key:            DefaultRedisKey,
		attempts:       3,
		delay:          50 * time.Millisecond,
		failures:       3,
		breakerTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	st := gobreaker.Settings{
		Name:        "xtoken.redis",
		MaxRequests: 1,
		Timeout:     o.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.failures
		},
		// 调用方取消不代表 Redis 故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if o.onBreakerChange != nil {
		st.OnStateChange = func(_ string, from, to gobreaker.State) {
			o.onBreakerChange(from, to)
		}
	}

	return &RedisBackend{
		client:   client,
		key:      o.key,
		ttl:      o.ttl,
		sealer:   o.sealer,
		attempts: o.attempts,
		delay:    o.delay,
		cb:       gobreaker.NewCircuitBreaker[any](st),
	}, nil
}

// BreakerState 返回熔断器当前状态。
func (b *RedisBackend) BreakerState() gobreaker.State { return b.cb.State() }

// Load 实现 Backend。
func (b *RedisBackend) Load(ctx context.Context) (TokenPair, error) {
	v, err := b.execute(func() (any, error) {
		return b.client.HGetAll(ctx, b.key).Result()
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("xtoken: redis load: %w", err)
	}
	fields, _ := v.(map[string]string)

	access, err := b.openField(fields[fieldAccess])
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := b.openField(fields[fieldRefresh])
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Save 实现 Backend。零值令牌对等同于 Clear。
func (b *RedisBackend) Save(ctx context.Context, pair TokenPair) error {
	if pair.IsZero() {
		return b.Clear(ctx)
	}
	access, err := b.sealField(pair.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := b.sealField(pair.RefreshToken)
	if err != nil {
		return err
	}

	return b.retryWrite(ctx, "save", func() error {
		_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, b.key)
			pipe.HSet(ctx, b.key, fieldAccess, access, fieldRefresh, refresh)
			if b.ttl > 0 {
				pipe.Expire(ctx, b.key, b.ttl)
			}
			return nil
		})
		return err
	})
}

// Clear 实现 Backend。
func (b *RedisBackend) Clear(ctx context.Context) error {
	return b.retryWrite(ctx, "clear", func() error {
		return b.client.Del(ctx, b.key).Err()
	})
}

func (b *RedisBackend) retryWrite(ctx context.Context, op string, fn func() error) error {
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(b.attempts),
		retry.Delay(b.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrBackendUnavailable) &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		}),
	).Do(func() error {
		_, err := b.execute(func() (any, error) { return nil, fn() })
		return err
	})
	if err != nil {
		return fmt.Errorf("xtoken: redis %s: %w", op, err)
	}
	return nil
}

func (b *RedisBackend) execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return v, err
}

func (b *RedisBackend) sealField(v string) (string, error) {
	if b.sealer == nil || v == "" {
		return v, nil
	}
	sealed, err := b.sealer.Seal([]byte(v))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *RedisBackend) openField(v string) (string, error) {
	if b.sealer == nil || v == "" {
		return v, nil
	}
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return "", ErrSealedData
	}
	plain, err := b.sealer.Open(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
