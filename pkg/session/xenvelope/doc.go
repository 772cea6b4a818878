// Package xenvelope 解析与构造后端统一响应信封。
//
// 后端所有接口返回如下结构：
//
//	{ "code": 200, "message": "操作成功", "data": {...}, "traceId": "...", "timestamp": 1700000000000 }
//
// # 解析规则
//
// [Decode] 先做形状校验：必须是 JSON 对象，且 code 字段为 JSON 整数。
// 校验失败的响应视为非信封接口，原样透传（[KindRaw]）。
//
//   - code == 200：[KindSuccess]，Data 为 data 字段；data 缺失时返回整个信封，不会返回空值
//   - code == 401：[KindUnauthorized]
//   - 其他：[KindBusinessError]，携带 Code、Message、TraceID
//
// Message 取值顺序：message → msg → [DefaultMessage]。
//
// # 构造
//
// [Success]、[Failure]、[Encode] 用于模拟后端与测试。
package xenvelope
