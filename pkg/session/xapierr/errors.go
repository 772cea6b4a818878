// Package xapierr 定义会话核心的错误分类。
//
// 分类与处理策略：
//
//   - [ErrCanceled]：被更新的同 key 请求取代，静默，不提示、不跳转
//   - [ErrUnauthorized]：会话无效，触发刷新或登出
//   - [APIError]：业务错误，提示用户，部分结果码跳转错误页
//   - [ErrNetworkUnreachable]：未收到任何 HTTP 响应，计入网络健康监控
//   - [ErrTimeout]：请求超时，健康监控视同网络不可达，但不等同于取消
package xapierr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// =============================================================================
// 哨兵错误
// =============================================================================

var (
	// ErrCanceled 表示请求被取消（去重取代或调用方取消）。
	ErrCanceled = errors.New("xapierr: canceled")

	// ErrUnauthorized 表示会话无效（401）。
	ErrUnauthorized = errors.New("xapierr: unauthorized")

	// ErrForbidden 表示权限不足（403）。
	ErrForbidden = errors.New("xapierr: forbidden")

	// ErrNetworkUnreachable 表示网络不可达，没有收到 HTTP 响应。
	ErrNetworkUnreachable = errors.New("xapierr: network unreachable")

	// ErrTimeout 表示请求超时。
	ErrTimeout = errors.New("xapierr: timeout")

	// ErrRefreshRejected 表示刷新接口明确拒绝了 refresh token（401/403）。
	ErrRefreshRejected = errors.New("xapierr: refresh token rejected")
)

// Kind 错误分类。
type Kind int

const (
	KindNone Kind = iota
	KindCanceled
	KindUnauthorized
	KindBusiness
	KindNetworkUnreachable
	KindTimeout
	KindOther
)

// String 返回分类名称，用于日志与指标。
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCanceled:
		return "canceled"
	case KindUnauthorized:
		return "unauthorized"
	case KindBusiness:
		return "business"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindTimeout:
		return "timeout"
	case KindOther:
		return "other"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// =============================================================================
// APIError 业务错误
// =============================================================================

// APIError 后端返回的业务错误。
type APIError struct {
	// Code 信封结果码；非信封响应时为 HTTP 状态码。
	Code int
	// HTTPStatus HTTP 状态码。
	HTTPStatus int
	Message    string
	TraceID    string
	Timestamp  int64
}

// NewAPIError 创建业务错误。
func NewAPIError(code int, message, traceID string) *APIError {
	return &APIError{Code: code, Message: message, TraceID: traceID}
}

func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("xapierr: api error: code=%d, message=%s, trace_id=%s", e.Code, e.Message, e.TraceID)
	}
	return fmt.Sprintf("xapierr: api error: code=%d, message=%s", e.Code, e.Message)
}

// Is 将 401/403 映射到对应哨兵错误。
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case 401:
		return target == ErrUnauthorized
	case 403:
		return target == ErrForbidden
	}
	return false
}

// =============================================================================
// NetworkError 传输层错误
// =============================================================================

// NetworkError 传输层失败（无 HTTP 响应）。
type NetworkError struct {
	// Timeout 为 true 表示超时，否则为不可达。
	Timeout bool
	Method  string
	URL     string
	Err     error
}

func (e *NetworkError) Error() string {
	kind := "unreachable"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("xapierr: network %s: %s %s: %v", kind, e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is 将 NetworkError 映射到 ErrTimeout 或 ErrNetworkUnreachable。
func (e *NetworkError) Is(target error) bool {
	if e.Timeout {
		return target == ErrTimeout
	}
	return target == ErrNetworkUnreachable
}

// =============================================================================
// 判定函数
// =============================================================================

// IsCanceled 判断是否为取消。context.Canceled 也视为取消，超时不算。
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsUnauthorized 判断是否为 401。
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsForbidden 判断是否为 403。
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsTimeout 判断是否为超时。
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsNetwork 判断是否为网络失败（不可达或超时），取消不计入。
func IsNetwork(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	return errors.Is(err, ErrNetworkUnreachable) || errors.Is(err, ErrTimeout)
}

// AsAPIError 提取 APIError。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Classify 返回错误分类。
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case IsCanceled(err):
		return KindCanceled
	case IsUnauthorized(err):
		return KindUnauthorized
	case IsTimeout(err):
		return KindTimeout
	case errors.Is(err, ErrNetworkUnreachable):
		return KindNetworkUnreachable
	}
	if _, ok := AsAPIError(err); ok {
		return KindBusiness
	}
	return KindOther
}

// ShouldRedirect 判断业务错误码是否需要跳转错误页（400、404、5xx）。
func ShouldRedirect(code int) bool {
	return code == 400 || code == 404 || (code >= 500 && code <= 599)
}
