// Package xclient 提供管理后台的会话化 HTTP 客户端。
//
// 一个 [Client] 持有一个显式的 [Session]（令牌存储、在途请求表、刷新协调器、
// 网络健康监控、副作用分发器），不依赖任何包级全局状态，测试中可以并行创建多个相互隔离的会话。
//
// # 请求流程
//
//	Do → 去重登记 → 请求阶段(trace, auth) → 传输 → 响应阶段(token-sync, envelope) → 分类
//
// 分类结果：
//
//   - 成功：返回 data，重置网络失败窗口
//   - 业务错误：提示并按结果码跳转错误页，调用方收到 *xapierr.APIError
//   - 未认证：认证接口、SkipTokenRefresh 或已重放过的请求直接登出；
//     其余请求经刷新协调器换取新令牌后重放一次
//   - 网络错误：提示并计入健康监控；被去重取代的请求静默返回 xapierr.ErrCanceled
//
// 流水线阶段可通过 [Pipeline.Use] 与 [Pipeline.UseResponse] 追加，
// [Pipeline.Stages] 列出当前顺序。
package xclient
