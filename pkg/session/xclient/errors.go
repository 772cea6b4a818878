package xclient

import "errors"

// =============================================================================
// 配置错误
// =============================================================================

var (
	// ErrNilConfig 表示传入的配置为 nil。
	ErrNilConfig = errors.New("xclient: nil config")

	// ErrMissingBaseURL 表示未配置后端地址。
	ErrMissingBaseURL = errors.New("xclient: missing base url")

	// ErrInvalidBaseURL 表示后端地址格式无效，必须包含协议和主机名。
	ErrInvalidBaseURL = errors.New("xclient: invalid base url: must include scheme and host (e.g., https://admin.example.com/api)")

	// ErrInsecureBaseURL 表示后端地址使用了 http://。
	// 开发/测试环境请设置 Config.AllowInsecure = true。
	ErrInsecureBaseURL = errors.New("xclient: base url must use https:// (set AllowInsecure=true for development)")

	// ErrInvalidTimeout 表示超时配置无效。
	ErrInvalidTimeout = errors.New("xclient: invalid timeout")

	// ErrInvalidPath 表示接口路径未以 "/" 开头。
	ErrInvalidPath = errors.New("xclient: path must start with /")
)

// =============================================================================
// 请求错误
// =============================================================================

var (
	// ErrNilRequest 表示传入的请求为 nil。
	ErrNilRequest = errors.New("xclient: nil request")

	// ErrClosed 表示会话已关闭。
	ErrClosed = errors.New("xclient: session closed")

	// ErrResponseTooLarge 表示响应体超过上限。
	ErrResponseTooLarge = errors.New("xclient: response too large")
)
