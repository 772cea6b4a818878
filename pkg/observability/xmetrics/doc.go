// Package xmetrics 定义会话组件共用的观测接口（metrics + tracing）。
//
// 组件只依赖 [Observer]/[Span]；默认 [NoopObserver]，
// 生产环境使用 [NewOTelObserver] 接入 OpenTelemetry。
//
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xclient",
//		Operation: "request",
//		Kind:      xmetrics.KindClient,
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
//
// 统一指标：xadmin.operation.total、xadmin.operation.duration，
// 属性 component / operation / status。
package xmetrics
