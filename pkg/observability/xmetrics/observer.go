package xmetrics

import (
	"context"
	"strconv"
	"time"
)

// Kind 跨度类型。
type Kind int

const (
	KindInternal Kind = iota
	KindClient
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindClient:
		return "Client"
	case KindServer:
		return "Server"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Status 结果状态。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Attr 观测属性。
type Attr struct {
	Key   string
	Value any
}

// String 字符串属性。
func String(key, value string) Attr { return Attr{Key: key, Value: value} }

// Bool 布尔属性。
func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }

// Int 整数属性。
func Int(key string, value int) Attr { return Attr{Key: key, Value: value} }

// Duration 时长属性，OTel 中以纳秒记录。
func Duration(key string, value time.Duration) Attr { return Attr{Key: key, Value: value} }

// SpanOptions 跨度创建参数。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 跨度结束结果。Status 为空时由 Err 推导。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

func (r Result) status() Status {
	if r.Status != "" {
		return r.Status
	}
	if r.Err != nil {
		return StatusError
	}
	return StatusOK
}

// Span 一次观测跨度。
type Span interface {
	End(result Result)
}

// Observer 观测入口。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 空实现。
type NoopObserver struct{}

// Start 实现 Observer。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 空跨度。
type NoopSpan struct{}

// End 实现 Span。
func (NoopSpan) End(Result) {}

// Start 通过 observer 开始跨度，保证返回非 nil 的 context 与 Span。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	next, span := observer.Start(ctx, opts)
	if next == nil {
		next = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return next, span
}
