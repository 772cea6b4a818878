package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// 日志属性 key，遵循 OpenTelemetry 语义约定（下划线分隔）。
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyRequestID  = "request_id"
	KeyTraceFlags = "trace_flags"
)

const (
	keyTraceID    = contextKey("xctx:trace_id")
	keySpanID     = contextKey("xctx:span_id")
	keyRequestID  = contextKey("xctx:request_id")
	keyTraceFlags = contextKey("xctx:trace_flags")
)

// W3C 规范长度（字节）。
const (
	TraceIDSize = 16
	SpanIDSize  = 8
)

// WithTraceID 注入 trace ID。
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	return withValue(ctx, keyTraceID, traceID)
}

// TraceID 读取 trace ID。
func TraceID(ctx context.Context) string { return stringValue(ctx, keyTraceID) }

// WithSpanID 注入 span ID。
func WithSpanID(ctx context.Context, spanID string) (context.Context, error) {
	return withValue(ctx, keySpanID, spanID)
}

// SpanID 读取 span ID。
func SpanID(ctx context.Context) string { return stringValue(ctx, keySpanID) }

// WithTraceFlags 注入采样标志（两位十六进制，如 "01"）。
func WithTraceFlags(ctx context.Context, flags string) (context.Context, error) {
	return withValue(ctx, keyTraceFlags, flags)
}

// TraceFlags 读取采样标志。
func TraceFlags(ctx context.Context) string { return stringValue(ctx, keyTraceFlags) }

// WithRequestID 注入 request ID。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withValue(ctx, keyRequestID, requestID)
}

// RequestID 读取 request ID。
func RequestID(ctx context.Context) string { return stringValue(ctx, keyRequestID) }

// RequireRequestID 读取 request ID，缺失时返回 ErrMissingRequestID。
func RequireRequestID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if v := RequestID(ctx); v != "" {
		return v, nil
	}
	return "", ErrMissingRequestID
}

// RequireTraceID 读取 trace ID，缺失时返回 ErrMissingTraceID。
func RequireTraceID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if v := TraceID(ctx); v != "" {
		return v, nil
	}
	return "", ErrMissingTraceID
}

// GenerateRequestID 生成 UUIDv4 形式的 request ID。
func GenerateRequestID() string { return uuid.NewString() }

// GenerateTraceID 生成 32 位十六进制 trace ID，不会全零。
// 熵源不可用时 panic。
func GenerateTraceID() string { return randomHex(TraceIDSize) }

// GenerateSpanID 生成 16 位十六进制 span ID，不会全零。
func GenerateSpanID() string { return randomHex(SpanIDSize) }

func randomHex(n int) string {
	buf := make([]byte, n)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("xctx: crypto/rand.Read failed: " + err.Error())
		}
		for _, b := range buf {
			if b != 0 {
				return hex.EncodeToString(buf)
			}
		}
	}
}

// EnsureRequestID 已有 request ID 时原样返回，否则生成并注入。
func EnsureRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if RequestID(ctx) != "" {
		return ctx, nil
	}
	return WithRequestID(ctx, GenerateRequestID())
}

// EnsureTraceID 已有 trace ID 时原样返回，否则生成并注入。
func EnsureTraceID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if TraceID(ctx) != "" {
		return ctx, nil
	}
	return WithTraceID(ctx, GenerateTraceID())
}
