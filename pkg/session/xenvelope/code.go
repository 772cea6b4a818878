package xenvelope

// =============================================================================
// 结果码
// =============================================================================

// 后端结果码。多个业务语义共用同一数值，与后端常量保持一致。
const (
	CodeSuccess = 200

	CodeParamError      = 400
	CodeParamMissing    = 400
	CodeParamInvalid    = 400
	CodeBizError        = 400
	CodeOperationFailed = 400

	CodeUnauthorized = 401
	CodeTokenExpired = 401
	CodeTokenInvalid = 401

	CodeAccessDenied    = 403
	CodeAccountLocked   = 403
	CodeAccountDisabled = 403

	CodeDataNotFound = 404

	CodeDataAlreadyExists = 409
	CodeDataConflict      = 409
	CodeDuplicateRequest  = 409

	CodeRateLimitExceeded = 429

	CodeSystemError   = 500
	CodeDatabaseError = 500
	CodeCacheError    = 500
	CodeRPCError      = 500

	CodeServiceUnavailable = 503
	CodeTimeout            = 504
)

// fallbackMessage 未知结果码的兜底提示。
const fallbackMessage = "请求失败"

var defaultMessages = map[int]string{
	CodeSuccess:            "操作成功",
	CodeParamError:         "参数错误",
	CodeUnauthorized:       "未认证",
	CodeAccessDenied:       "无权限访问",
	CodeDataNotFound:       "数据不存在",
	CodeDataConflict:       "数据冲突",
	CodeRateLimitExceeded:  "请求过于频繁",
	CodeSystemError:        "系统繁忙，请稍后重试",
	CodeServiceUnavailable: "服务不可用",
	CodeTimeout:            "请求超时",
}

// DefaultMessage 返回结果码对应的默认提示，未知结果码返回 "请求失败"。
func DefaultMessage(code int) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return fallbackMessage
}

// IsSuccess 判断是否为成功码。
func IsSuccess(code int) bool { return code == CodeSuccess }

// IsUnauthorized 判断是否为未认证码。
func IsUnauthorized(code int) bool { return code == CodeUnauthorized }
