package xadmin

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xadmin: nil client")

	// ErrInvalidPayload 表示请求体或响应数据未通过校验。
	ErrInvalidPayload = errors.New("xadmin: invalid payload")

	// ErrEmptyIDs 表示批量操作没有有效 ID。
	ErrEmptyIDs = errors.New("xadmin: ids is required")

	// ErrMissingAccessToken 表示登录响应中没有 access token。
	ErrMissingAccessToken = errors.New("xadmin: login response missing access token")

	// ErrMissingDictType 表示字典类型为空。
	ErrMissingDictType = errors.New("xadmin: dict type is required")
)

// FieldError 单个字段的校验失败。
type FieldError struct {
	// Field json 字段名，如 "nickname"。
	Field string
	// Tag 失败的校验规则，如 "required"、"max"。
	Tag string
	// Param 规则参数，如 max=50 中的 "50"。
	Param string
}

func (f FieldError) String() string {
	if f.Param == "" {
		return f.Field + ":" + f.Tag
	}
	return f.Field + ":" + f.Tag + "=" + f.Param
}

// ValidationError 一次校验的全部字段错误。errors.Is(err, ErrInvalidPayload) 为 true。
type ValidationError struct {
	Op     string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("xadmin: invalid %s payload: %s", e.Op, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPayload }

// HasField 判断 field 是否校验失败。
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
