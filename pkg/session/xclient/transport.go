package xclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/omeyang/xadmin/pkg/session/xapierr"
)

// newHTTPRequest 构建请求。path 以 "/" 开头，与 BaseURL 直接拼接。
func (c *Client) newHTTPRequest(
	ctx context.Context,
	method, path string,
	query url.Values,
	body []byte,
	contentType string,
	header http.Header,
) (*http.Request, error) {
	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader(body))
	if err != nil {
		return nil, fmt.Errorf("xclient: create request failed: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// send 执行请求并读取响应体（最多 MaxResponseSize 字节）。
// 传输失败统一转换为 xapierr 分类：取消、超时或不可达。
func (c *Client) send(ctx context.Context, req *http.Request) (int, http.Header, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, transportError(ctx, req, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // Close 错误无法传播

	lr := &io.LimitedReader{R: resp.Body, N: MaxResponseSize + 1}
	raw, err := io.ReadAll(lr)
	if err != nil {
		return 0, nil, nil, transportError(ctx, req, err)
	}
	if len(raw) > MaxResponseSize {
		return 0, nil, nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return resp.StatusCode, resp.Header, raw, nil
}

// transportError 区分取消与网络失败。
// 去重取代的原因是 xapierr.ErrCanceled，调用方取消是 context.Canceled，二者都不算网络失败。
func transportError(ctx context.Context, req *http.Request, err error) error {
	target := sanitizeURL(req.URL)
	if errors.Is(ctx.Err(), context.Canceled) {
		cause := context.Cause(ctx)
		if errors.Is(cause, xapierr.ErrCanceled) || errors.Is(cause, context.Canceled) {
			return fmt.Errorf("xclient: %s %s: %w", req.Method, target, cause)
		}
		return fmt.Errorf("xclient: %s %s: %w: %w", req.Method, target, context.Canceled, cause)
	}

	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &xapierr.NetworkError{
		Timeout: timeout,
		Method:  req.Method,
		URL:     target,
		Err:     err,
	}
}

// sanitizeURL 去除查询参数，避免 refresh token 等敏感参数进入日志。
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	clean.Fragment = ""
	clean.User = nil
	return clean.String()
}
