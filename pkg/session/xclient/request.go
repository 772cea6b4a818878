package xclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/xadmin/pkg/session/xnotify"
)

// =============================================================================
// Request
// =============================================================================

// Request 一次 API 调用。
type Request struct {
	Method string
	// Path 相对 BaseURL 的路径，以 "/" 开头。
	Path  string
	Query url.Values
	// Body 请求体：nil、[]byte、string、io.Reader 或任意可 JSON 序列化的值。
	Body    any
	Header  http.Header
	Options Options
}

// Options 单次请求的开关。
type Options struct {
	// SkipAuth 不携带 Authorization（登录、验证码）。
	SkipAuth bool
	// SkipErrorToast 不提示错误。
	SkipErrorToast bool
	// SkipAuthRedirect 未认证时不跳转登录页。
	SkipAuthRedirect bool
	// SkipErrorRedirect 业务错误不跳转错误页。
	SkipErrorRedirect bool
	// SkipTokenRefresh 未认证时不刷新，直接登出。
	SkipTokenRefresh bool
	// SkipDedup 不参与去重。
	SkipDedup bool
	// Timeout 覆盖 Config.Timeout。
	Timeout time.Duration
}

func (o Options) flags() xnotify.Flags {
	return xnotify.Flags{
		SkipErrorToast:    o.SkipErrorToast,
		SkipAuthRedirect:  o.SkipAuthRedirect,
		SkipErrorRedirect: o.SkipErrorRedirect,
	}
}

// CallOption 调整单次请求。
type CallOption func(*Request)

// SkipAuth 不携带 Authorization。
func SkipAuth() CallOption { return func(r *Request) { r.Options.SkipAuth = true } }

// SkipErrorToast 不提示错误。
func SkipErrorToast() CallOption { return func(r *Request) { r.Options.SkipErrorToast = true } }

// SkipAuthRedirect 未认证时不跳转登录页。
func SkipAuthRedirect() CallOption { return func(r *Request) { r.Options.SkipAuthRedirect = true } }

// SkipErrorRedirect 业务错误不跳转错误页。
func SkipErrorRedirect() CallOption { return func(r *Request) { r.Options.SkipErrorRedirect = true } }

// SkipTokenRefresh 未认证时不刷新。
func SkipTokenRefresh() CallOption { return func(r *Request) { r.Options.SkipTokenRefresh = true } }

// SkipDedup 不参与去重。
func SkipDedup() CallOption { return func(r *Request) { r.Options.SkipDedup = true } }

// WithTimeout 设置本次请求超时。
func WithTimeout(d time.Duration) CallOption {
	return func(r *Request) { r.Options.Timeout = d }
}

// WithHeader 设置请求头。
func WithHeader(key, value string) CallOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(key, value)
	}
}

// WithQuery 合并查询参数。
func WithQuery(q url.Values) CallOption {
	return func(r *Request) {
		if len(q) == 0 {
			return
		}
		if r.Query == nil {
			r.Query = make(url.Values, len(q))
		}
		for k, vs := range q {
			r.Query[k] = append(r.Query[k], vs...)
		}
	}
}

// WithOptions 整体设置开关。
func WithOptions(o Options) CallOption { return func(r *Request) { r.Options = o } }

// encodeBody 序列化请求体。返回的字节同时用于去重 key。
func encodeBody(body any) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "", nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("xclient: read request body failed: %w", err)
		}
		return data, "", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("xclient: marshal request body failed: %w", err)
		}
		return data, "application/json", nil
	}
}

func bodyReader(data []byte) io.Reader {
	if data == nil {
		return nil
	}
	return bytes.NewReader(data)
}

// =============================================================================
// Params 查询参数
// =============================================================================

// Params 查询参数构造器。
// 跳过 nil 与空字符串；切片编码为 key[]=v 形式。
type Params struct {
	values url.Values
}

// NewParams 创建 Params。
func NewParams() *Params { return &Params{values: make(url.Values)} }

// Set 设置参数。
func (p *Params) Set(key string, value any) *Params {
	if key == "" {
		return p
	}
	p.values.Del(key)
	p.values.Del(key + "[]")
	p.add(key, reflect.ValueOf(value))
	return p
}

// Struct 按 json 标签展开结构体字段。
// 标签为 "-" 的字段跳过；带 omitempty 的字段为零值时跳过。
func (p *Params) Struct(v any) *Params {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return p
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return p
	}
	rt := rv.Type()
	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		fv := rv.Field(i)
		// 无标签的嵌入结构体展开到同一层，与 encoding/json 一致
		if field.Anonymous && name == "" && indirectKind(fv) == reflect.Struct {
			p.Struct(fv.Interface())
			continue
		}
		if name == "" {
			name = field.Name
		}
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		p.Set(name, fv.Interface())
	}
	return p
}

// Values 返回参数。
func (p *Params) Values() url.Values {
	out := make(url.Values, len(p.values))
	for k, vs := range p.values {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Encode 编码为查询串。
func (p *Params) Encode() string { return p.values.Encode() }

func (p *Params) add(key string, rv reflect.Value) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Invalid:
		return
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			p.addScalar(key, string(rv.Bytes()))
			return
		}
		for i := range rv.Len() {
			if s, ok := scalar(rv.Index(i)); ok && s != "" {
				p.values.Add(key+"[]", s)
			}
		}
	default:
		if s, ok := scalar(rv); ok {
			p.addScalar(key, s)
		}
	}
}

func indirectKind(rv reflect.Value) reflect.Kind {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Invalid
		}
		return rv.Elem().Kind()
	}
	return rv.Kind()
}

func (p *Params) addScalar(key, s string) {
	if s == "" {
		return
	}
	p.values.Add(key, s)
}

func scalar(rv reflect.Value) (string, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if t, ok := rv.Interface().(time.Time); ok {
		if t.IsZero() {
			return "", false
		}
		return t.Format(time.RFC3339), true
	}
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	default:
		return "", false
	}
}
