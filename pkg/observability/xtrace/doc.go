// Package xtrace 提供 W3C Trace Context 的 HTTP 传播。
//
// 出站请求用 [Inject] 写入 traceparent 与 X-Request-ID；
// 服务端用 [Extract] 与 [ContextWithInfo] 把上游信息写入 context，
// 之后 xlog 的 EnrichHandler 会自动在日志中带上 trace_id 等字段。
//
//	ctx = xtrace.ContextWithInfo(r.Context(), xtrace.Extract(r.Header), true)
//
// 追踪信息存放在 xctx 中，本包只负责格式校验与传输层读写。
package xtrace
