package xclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/omeyang/xadmin/pkg/session/xhealth"
)

// =============================================================================
// 默认值
// =============================================================================

const (
	// DefaultTimeout 默认请求超时时间。
	DefaultTimeout = 15 * time.Second

	// DefaultRefreshTimeout 刷新接口超时时间。
	DefaultRefreshTimeout = 10 * time.Second

	// MaxResponseSize 最大响应体大小（10MB）。
	MaxResponseSize = 10 * 1024 * 1024
)

// =============================================================================
// API 路由
// =============================================================================

//nolint:gosec // G101: 这些是 API 路径常量，不是凭据
const (
	PathLogin   = "/auth/login"
	PathRefresh = "/auth/refresh"
	PathCaptcha = "/auth/captcha"
	PathInfo    = "/auth/info"
	PathLogout  = "/auth/logout"
	PathRouters = "/system/menu/getRouters"
)

// DefaultAuthPaths 认证接口：其 401 表示凭据被拒绝，而不是 access token 过期。
func DefaultAuthPaths() []string {
	return []string{PathLogin, PathRefresh, PathCaptcha}
}

// 令牌同步头。
const (
	HeaderAuthorization = "Authorization"
	HeaderAccessToken   = "X-Access-Token"
	HeaderRefreshToken  = "X-Refresh-Token"
	HeaderRequestID     = "X-Request-ID"
)

// =============================================================================
// Config 配置结构
// =============================================================================

// Config 定义客户端配置。
type Config struct {
	// BaseURL 后端地址（必填），可以带路径前缀，例如 https://admin.example.com/api。
	// 必须使用 https://，除非显式设置 AllowInsecure = true。
	BaseURL string `koanf:"base_url" json:"baseUrl"`

	// AllowInsecure 允许使用 http:// 非加密连接，仅用于开发/测试环境。
	AllowInsecure bool `koanf:"allow_insecure" json:"allowInsecure"`

	// Timeout 单次请求超时，默认 15 秒。
	Timeout time.Duration `koanf:"timeout" json:"timeout"`

	// RefreshTimeout 刷新调用超时，默认 10 秒。
	RefreshTimeout time.Duration `koanf:"refresh_timeout" json:"refreshTimeout"`

	// TokenHeaderSync 开启后请求额外携带 X-Refresh-Token，
	// 响应头中的 X-Access-Token / X-Refresh-Token 会写回令牌存储。
	TokenHeaderSync bool `koanf:"token_header_sync" json:"tokenHeaderSync"`

	// RefreshPath 刷新接口，默认 /auth/refresh。
	RefreshPath string `koanf:"refresh_path" json:"refreshPath"`

	// ProbePath 健康确认探测接口，需要认证，默认 /auth/info。
	ProbePath string `koanf:"probe_path" json:"probePath"`

	// AuthPaths 认证接口前缀列表，默认登录/刷新/验证码。
	AuthPaths []string `koanf:"auth_paths" json:"authPaths"`

	// Health 网络健康监控阈值。
	Health xhealth.Config `koanf:"health" json:"health"`

	// TLS 配置，为 nil 时启用证书验证。
	TLS *TLSConfig `koanf:"tls" json:"tls,omitempty"`
}

// TLSConfig TLS 配置。
type TLSConfig struct {
	// InsecureSkipVerify 是否跳过证书验证，仅用于开发/测试环境。
	InsecureSkipVerify bool `koanf:"insecure_skip_verify" json:"insecureSkipVerify"`

	// RootCAFile CA 证书文件路径。
	RootCAFile string `koanf:"root_ca_file" json:"rootCaFile"`
}

// Validate 验证配置有效性。
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := c.validateBaseURL(); err != nil {
		return err
	}
	if c.Timeout < 0 || c.RefreshTimeout < 0 {
		return ErrInvalidTimeout
	}
	for _, p := range append([]string{c.RefreshPath, c.ProbePath}, c.AuthPaths...) {
		if p != "" && !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	health := c.Health
	health.ApplyDefaults()
	return health.Validate()
}

// validateBaseURL 校验 BaseURL 格式和协议安全性。
func (c *Config) validateBaseURL() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}
	if !c.AllowInsecure && u.Scheme != "https" {
		return ErrInsecureBaseURL
	}
	return nil
}

// ApplyDefaults 应用默认值。
func (c *Config) ApplyDefaults() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RefreshTimeout == 0 {
		c.RefreshTimeout = DefaultRefreshTimeout
	}
	if c.RefreshPath == "" {
		c.RefreshPath = PathRefresh
	}
	if c.ProbePath == "" {
		c.ProbePath = PathInfo
	}
	if c.AuthPaths == nil {
		c.AuthPaths = DefaultAuthPaths()
	}
	c.Health.ApplyDefaults()
}

// Clone 创建配置的深拷贝。
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.AuthPaths = slices.Clone(c.AuthPaths)
	if c.TLS != nil {
		tlsCopy := *c.TLS
		clone.TLS = &tlsCopy
	}
	return &clone
}

// IsAuthPath 判断 path 是否为认证接口。
func (c *Config) IsAuthPath(path string) bool {
	path = routePath(path)
	for _, p := range c.AuthPaths {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// BuildTLSConfig 构建 TLS 配置。
func (c *TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	if c == nil {
		return nil, nil
	}

	//nolint:gosec // G402: InsecureSkipVerify 由用户配置控制
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if c.RootCAFile != "" {
		caCert, err := os.ReadFile(c.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("xclient: failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("xclient: failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}
	return tlsConfig, nil
}

// routePath 去掉查询串。
func routePath(p string) string {
	if path, _, found := strings.Cut(p, "?"); found {
		return path
	}
	return p
}
