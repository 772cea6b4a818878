// Package xctx 在 context 中传递请求追踪信息与当前控制台用户。
//
// 追踪字段：trace_id / span_id / trace_flags（W3C Trace Context）、request_id（UUID）。
// 用户字段：user_id / username，由会话登录后注入，用于日志关联。
//
// 所有 With 函数在 ctx 为 nil 时返回 [ErrNilContext]；读取函数对 nil ctx 返回空串。
package xctx

import (
	"context"
	"errors"
)

// contextKey 包私有 key 类型，避免与其他包冲突。
type contextKey string

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingRequestID request_id 缺失。
	ErrMissingRequestID = errors.New("xctx: missing request_id")

	// ErrMissingTraceID trace_id 缺失。
	ErrMissingTraceID = errors.New("xctx: missing trace_id")
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func withValue(ctx context.Context, key contextKey, v string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, v), nil
}
