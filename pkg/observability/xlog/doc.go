// Package xlog 基于 log/slog 的日志构建器。
//
// # 创建 Logger
//
// Builder 采用 first-error-wins：遇到第一个配置错误后，后续 Set 调用被跳过，
// 错误在 Build 时返回。
//
//	logger, lv, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/xadmin.log", xlog.RotationConfig{MaxSizeMB: 50}).
//		Build()
//	defer cleanup()
//	lv.Set(slog.LevelWarn) // 运行时调整级别
//
// # Context 注入
//
// 默认启用 [EnrichHandler]，从 context 中提取 request_id、trace_id、span_id、
// user_id、username 并追加到每条日志。
//
// # 令牌脱敏
//
// 默认对 password、access_token、refresh_token、authorization 等字段脱敏，
// 可通过 SetRedact(false) 关闭或 SetReplaceAttr 追加自定义规则。
package xlog
