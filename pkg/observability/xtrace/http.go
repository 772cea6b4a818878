package xtrace

import (
	"context"
	"net/http"
	"strings"

	"github.com/omeyang/xadmin/pkg/context/xctx"
)

// HTTP Header 名称。
const (
	HeaderTraceparent = "traceparent"
	HeaderTracestate  = "tracestate"
	HeaderTraceID     = "X-Trace-ID"
	HeaderRequestID   = "X-Request-ID"
)

// TraceInfo 链路追踪信息。
type TraceInfo struct {
	TraceID    string
	SpanID     string
	TraceFlags string
	RequestID  string
	Tracestate string
}

// IsEmpty 判断是否没有任何追踪信息。
func (t TraceInfo) IsEmpty() bool {
	return t.TraceID == "" && t.SpanID == "" && t.TraceFlags == "" && t.RequestID == "" && t.Tracestate == ""
}

// Traceparent 返回 v00 traceparent，无法生成时为空串。
func (t TraceInfo) Traceparent() string {
	return FormatTraceparent(t.TraceID, t.SpanID, t.TraceFlags)
}

// Extract 从 HTTP Header 提取追踪信息。
// traceparent 有效时优先；否则回退到 X-Trace-ID。
func Extract(h http.Header) TraceInfo {
	if h == nil {
		return TraceInfo{}
	}
	info := TraceInfo{RequestID: strings.TrimSpace(h.Get(HeaderRequestID))}
	if traceID, spanID, flags, ok := ParseTraceparent(strings.TrimSpace(h.Get(HeaderTraceparent))); ok {
		info.TraceID, info.SpanID, info.TraceFlags = traceID, spanID, flags
		info.Tracestate = strings.TrimSpace(h.Get(HeaderTracestate))
		return info
	}
	if id := strings.TrimSpace(h.Get(HeaderTraceID)); ValidTraceID(id) {
		info.TraceID = strings.ToLower(id)
	}
	return info
}

// FromContext 读取 context 中的追踪信息。
func FromContext(ctx context.Context) TraceInfo {
	return TraceInfo{
		TraceID:    xctx.TraceID(ctx),
		SpanID:     xctx.SpanID(ctx),
		TraceFlags: xctx.TraceFlags(ctx),
		RequestID:  xctx.RequestID(ctx),
	}
}

// ContextWithInfo 把追踪信息写入 context，格式无效的字段丢弃。
// generate 为 true 时补齐缺失的 trace id 与 request id。
func ContextWithInfo(ctx context.Context, info TraceInfo, generate bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	traceID := info.TraceID
	if !ValidTraceID(traceID) {
		traceID = ""
		if generate {
			traceID = xctx.GenerateTraceID()
		}
	}
	set(&ctx, xctx.WithTraceID, traceID)
	if ValidSpanID(info.SpanID) {
		set(&ctx, xctx.WithSpanID, info.SpanID)
	}
	if len(info.TraceFlags) == 2 && isHex(info.TraceFlags) {
		set(&ctx, xctx.WithTraceFlags, strings.ToLower(info.TraceFlags))
	}

	requestID := info.RequestID
	if requestID == "" && generate {
		requestID = xctx.GenerateRequestID()
	}
	set(&ctx, xctx.WithRequestID, requestID)
	return ctx
}

// Inject 为一次出站请求写入追踪头，返回写入的信息。
// 沿用 context 中的 trace id（缺失时新建），每次请求生成新的 span id。
// Header 中已有的 X-Request-ID 不覆盖。
func Inject(ctx context.Context, h http.Header) TraceInfo {
	if h == nil {
		return TraceInfo{}
	}
	info := FromContext(ctx)
	if !ValidTraceID(info.TraceID) {
		info.TraceID = xctx.GenerateTraceID()
	}
	info.SpanID = xctx.GenerateSpanID()

	h.Set(HeaderTraceparent, info.Traceparent())
	if existing := h.Get(HeaderRequestID); existing != "" {
		info.RequestID = existing
	} else if info.RequestID != "" {
		h.Set(HeaderRequestID, info.RequestID)
	}
	return info
}

func set(ctx *context.Context, with func(context.Context, string) (context.Context, error), value string) {
	if value == "" {
		return
	}
	if next, err := with(*ctx, value); err == nil {
		*ctx = next
	}
}
