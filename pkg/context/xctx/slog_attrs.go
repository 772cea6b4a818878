package xctx

import (
	"context"
	"log/slog"
)

// AppendLogAttrs 将 context 中非空的追踪与用户字段追加到 attrs。
func AppendLogAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := TraceID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceID, v))
	}
	if v := SpanID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeySpanID, v))
	}
	if v := UserID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyUserID, v))
	}
	if v := Username(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyUsername, v))
	}
	return attrs
}

// LogAttrs 返回 context 中的日志属性，全部为空时返回 nil。
func LogAttrs(ctx context.Context) []slog.Attr {
	attrs := AppendLogAttrs(make([]slog.Attr, 0, 5), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
