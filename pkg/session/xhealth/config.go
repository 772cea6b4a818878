package xhealth

import (
	"errors"
	"fmt"
	"time"
)

// 默认阈值。
const (
	DefaultMaxConsecutiveFailures = 3
	DefaultMaxOfflineDuration     = 60 * time.Second
	DefaultProbeTimeout           = 5 * time.Second
	DefaultLogoutCooldown         = 3 * time.Second
)

// ErrInvalidConfig 表示配置不合法。
var ErrInvalidConfig = errors.New("xhealth: invalid config")

// Config 网络健康监控配置。
type Config struct {
	// MaxConsecutiveFailures 连续网络失败次数达到该值即强制登出。
	MaxConsecutiveFailures int `koanf:"max_consecutive_failures" json:"maxConsecutiveFailures"`

	// MaxOfflineDuration 从首次失败起持续离线达到该时长即发起确认探测。
	MaxOfflineDuration time.Duration `koanf:"max_offline_duration" json:"maxOfflineDuration"`

	// ProbeTimeout 确认探测超时。
	ProbeTimeout time.Duration `koanf:"probe_timeout" json:"probeTimeout"`

	// LogoutCooldown 两次强制登出之间的最小间隔。
	LogoutCooldown time.Duration `koanf:"logout_cooldown" json:"logoutCooldown"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		MaxOfflineDuration:     DefaultMaxOfflineDuration,
		ProbeTimeout:           DefaultProbeTimeout,
		LogoutCooldown:         DefaultLogoutCooldown,
	}
}

// ApplyDefaults 为零值字段填充默认值。
func (c *Config) ApplyDefaults() {
	if c.MaxConsecutiveFailures == 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.MaxOfflineDuration == 0 {
		c.MaxOfflineDuration = DefaultMaxOfflineDuration
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.LogoutCooldown == 0 {
		c.LogoutCooldown = DefaultLogoutCooldown
	}
}

// Validate 校验配置。
func (c *Config) Validate() error {
	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("%w: max consecutive failures must be >= 1, got %d", ErrInvalidConfig, c.MaxConsecutiveFailures)
	}
	if c.MaxOfflineDuration <= 0 {
		return fmt.Errorf("%w: max offline duration must be positive", ErrInvalidConfig)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: probe timeout must be positive", ErrInvalidConfig)
	}
	if c.LogoutCooldown < 0 {
		return fmt.Errorf("%w: logout cooldown must not be negative", ErrInvalidConfig)
	}
	return nil
}
