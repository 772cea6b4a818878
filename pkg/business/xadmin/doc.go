// Package xadmin 提供后台管理接口的类型化封装：认证与系统管理（用户、角色、部门、菜单、字典）。
//
// # 功能概述
//
//   - 认证：验证码、登录、当前用户信息、动态路由、登出
//   - 系统管理：用户/角色/部门/菜单/字典的查询与增删改
//   - 请求体校验：基于 validator/v10，字段名取 json 标签
//   - 用户状态：资料、角色、权限与路由，会话登出时自动清空
//
// 所有请求经 [xclient.Client] 发出，令牌附加、刷新重放、错误提示与跳转
// 都由客户端完成，本包只负责路径、参数与数据形状。
//
// # 登录
//
// 登录响应同时接受 accessToken/refreshToken 与 access_token/refresh_token，
// 解析成功后写入会话的令牌存储。登录请求跳过认证头与登录页跳转，
// 凭据错误只提示，不跳转。
//
// # 用户信息
//
// 部分后端把资料放在 profile 子对象中：
//
//	{"profile": {"username": "admin", "roles": ["admin"]}, "permissions": ["*:*:*"]}
//
// [AuthAPI.Info] 会把 profile 展开到顶层，顶层的 roles/permissions/routers
// 优先于 profile 中的同名字段。
//
// # 权限判断
//
// [UserState.HasAnyPermission] 在用户持有 "*" 或 "*:*:*" 时对任意权限返回 true。
// 空的需求列表视为无需权限。
//
// # 默认行为
//
//   - Logger：WithLogger(nil) 使用 slog.Default()
//   - 批量删除会过滤非正数 ID，过滤后为空时返回 [ErrEmptyIDs]，不发请求
package xadmin
