// Package xnotify 把请求结果映射为用户可见的副作用：提示、跳转登录页、跳转错误页。
//
// [Dispatcher] 是唯一入口，组合三个可替换的协作者：
//
//   - [Notifier]：提示通道。[Toasts] 保留最近 5 条并按级别过期，[LogNotifier] 写日志
//   - [Navigator]：路由。[MemoryNavigator] 记录当前路由与跳转历史
//   - [ErrorStore]：错误页读取的错误详情（最近一次 + 按 trace id 索引）
//
// 提示与跳转都不会向调用方抛出 panic；已在目标路由时不重复跳转。
package xnotify
