// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持文件轮转与敏感字段脱敏
//   - xtrace: W3C Trace Context 的 HTTP 传播
//   - xmetrics: 统一可观测性接口（指标、追踪）
//
// 日志会自动从 context 中提取 xtrace 写入的追踪信息。
package observability
