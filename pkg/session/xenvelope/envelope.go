package xenvelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNoData 表示结果不携带可反序列化的数据。
var ErrNoData = errors.New("xenvelope: no data")

// Kind 表示解析结果的分类。
type Kind int

const (
	// KindRaw 非信封响应，原样透传。
	KindRaw Kind = iota
	// KindSuccess code == 200。
	KindSuccess
	// KindBusinessError 非成功、非 401 的业务错误。
	KindBusinessError
	// KindUnauthorized code == 401。
	KindUnauthorized
)

// String 返回 Kind 的可读名称。
func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindSuccess:
		return "success"
	case KindBusinessError:
		return "business_error"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Result 是一次响应解析的结果，解析后不再修改。
type Result struct {
	Kind      Kind
	Code      int
	Message   string
	TraceID   string
	Timestamp int64

	// Data 成功时为 data 字段（缺失时为整个信封），透传时为原始响应体。
	Data json.RawMessage
}

// Unmarshal 将 Data 反序列化到 v。
func (r Result) Unmarshal(v any) error {
	if len(bytes.TrimSpace(r.Data)) == 0 {
		return ErrNoData
	}
	return json.Unmarshal(r.Data, v)
}

// Envelope 是信封的编码形式。
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// =============================================================================
// 解析
// =============================================================================

// Decode 解析响应体。
// 形状不符合信封（非对象、code 缺失或非整数）时返回 KindRaw，Data 为原始 body。
func Decode(body []byte) Result {
	members, code, ok := match(body)
	if !ok {
		return Result{Kind: KindRaw, Data: body}
	}

	res := Result{
		Code:    code,
		Message: resolveMessage(members, code),
		TraceID: stringMember(members, "traceId"),
	}
	if raw, ok := members["timestamp"]; ok {
		_ = json.Unmarshal(raw, &res.Timestamp) //nolint:errcheck // 非法时间戳按 0 处理
	}

	switch {
	case IsSuccess(code):
		res.Kind = KindSuccess
		if data, ok := members["data"]; ok {
			res.Data = data
		} else {
			res.Data = body
		}
	case IsUnauthorized(code):
		res.Kind = KindUnauthorized
	default:
		res.Kind = KindBusinessError
	}
	return res
}

// Match 判断 body 是否为信封。
func Match(body []byte) bool {
	_, _, ok := match(body)
	return ok
}

// match 是信封的形状校验：JSON 对象 + 整数 code。
func match(body []byte) (map[string]json.RawMessage, int, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, 0, false
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return nil, 0, false
	}
	raw, ok := members["code"]
	if !ok {
		return nil, 0, false
	}
	code, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil, 0, false
	}
	return members, code, true
}

// resolveMessage 依次取 message、msg，均为空时使用默认提示。
func resolveMessage(members map[string]json.RawMessage, code int) string {
	if msg := stringMember(members, "message"); msg != "" {
		return msg
	}
	if msg := stringMember(members, "msg"); msg != "" {
		return msg
	}
	return DefaultMessage(code)
}

// stringMember 读取非空白字符串成员，类型不符或空白时返回 ""。
func stringMember(members map[string]json.RawMessage, key string) string {
	raw, ok := members[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// =============================================================================
// 构造
// =============================================================================

// Encode 构造信封 JSON。
func Encode(code int, message string, data any) ([]byte, error) {
	return json.Marshal(Envelope{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Success 构造成功信封。
func Success(data any) Envelope {
	return Envelope{
		Code:      CodeSuccess,
		Message:   DefaultMessage(CodeSuccess),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Failure 构造失败信封，message 为空时使用默认提示。
func Failure(code int, message, traceID string) Envelope {
	if message == "" {
		message = DefaultMessage(code)
	}
	return Envelope{
		Code:      code,
		Message:   message,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
}
