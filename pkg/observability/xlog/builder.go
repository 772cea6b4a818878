package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 轮转默认值
const (
	DefaultMaxSizeMB  = 500
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30
)

// LevelOff 高于所有级别，用于关闭日志（CLI 的 --log-level=off）。
const LevelOff = slog.Level(1 << 20)

// ErrEmptyFilename 轮转文件名为空。
var ErrEmptyFilename = errors.New("xlog: rotation filename is empty")

// Redacted 脱敏后的值。
const Redacted = "***"

// sensitiveKeys 默认脱敏的字段名（小写）。
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"authorization": {},
	"access_token":  {},
	"accesstoken":   {},
	"refresh_token": {},
	"refreshtoken":  {},
	"token":         {},
	"secret":        {},
}

// ReplaceAttrFunc 属性替换函数，返回空 Key 的 Attr 表示移除。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// RotationConfig 文件轮转配置，零值字段使用默认值。
type RotationConfig struct {
	MaxSizeMB  int  `json:"max_size_mb" yaml:"max_size_mb" koanf:"max_size_mb"`
	MaxBackups int  `json:"max_backups" yaml:"max_backups" koanf:"max_backups"`
	MaxAgeDays int  `json:"max_age_days" yaml:"max_age_days" koanf:"max_age_days"`
	Compress   bool `json:"compress" yaml:"compress" koanf:"compress"`
	LocalTime  bool `json:"local_time" yaml:"local_time" koanf:"local_time"`
}

func (c *RotationConfig) applyDefaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = DefaultMaxBackups
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = DefaultMaxAgeDays
	}
}

// Builder 日志配置构建器，一次性使用。
type Builder struct {
	output      io.Writer
	levelVar    *slog.LevelVar
	format      string
	addSource   bool
	enrich      bool
	redact      bool
	replaceAttr ReplaceAttrFunc
	attrs       []slog.Attr
	rotator     *lumberjack.Logger
	err         error
}

// New 创建构建器：stderr、Info、text、启用 context 注入与脱敏。
func New() *Builder {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: lv,
		format:   "text",
		enrich:   true,
		redact:   true,
	}
}

// SetOutput 设置输出目标，nil 忽略。
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if b.err == nil && w != nil {
		b.output = w
	}
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level slog.Level) *Builder {
	if b.err == nil {
		b.levelVar.Set(level)
	}
	return b
}

// SetLevelString 通过字符串设置日志级别，空串保持当前级别。
func (b *Builder) SetLevelString(s string) *Builder {
	if b.err != nil || strings.TrimSpace(s) == "" {
		return b
	}
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// ParseLevel 解析配置文件、--log-level 与 XADMIN_LOG_LEVEL 中的级别。
// 接受 slog 的写法（debug、INFO、warn+2 等，大小写不敏感），
// 另外支持 warning 与 off。
func ParseLevel(s string) (slog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "off":
		return LevelOff, nil
	case "warning":
		name = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("xlog: unknown level %q", s)
	}
	return level, nil
}

// SetFormat 设置输出格式：text 或 json，空串视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	if b.err != nil {
		return b
	}
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.err = fmt.Errorf("xlog: unknown format %q", format)
	}
	return b
}

// SetAddSource 是否输出源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否从 context 注入请求与用户字段
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enrich = enable
	return b
}

// SetRedact 是否对令牌与密码字段脱敏
func (b *Builder) SetRedact(enable bool) *Builder {
	b.redact = enable
	return b
}

// SetReplaceAttr 设置自定义属性替换，在脱敏之后执行。
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// With 添加固定属性，如 service、version。
func (b *Builder) With(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// SetRotation 输出到按大小轮转的文件。
func (b *Builder) SetRotation(filename string, cfg RotationConfig) *Builder {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(filename) == "" {
		b.err = ErrEmptyFilename
		return b
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		b.err = fmt.Errorf("xlog: create log dir: %w", err)
		return b
	}
	cfg.applyDefaults()
	b.rotator = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	}
	b.output = b.rotator
	return b
}

// Build 返回 logger、可动态调整的级别和清理函数（关闭轮转文件）。
func (b *Builder) Build() (*slog.Logger, *slog.LevelVar, func() error, error) {
	if b.err != nil {
		return nil, nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.buildReplaceAttr(),
	}
	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if b.enrich {
		handler = &EnrichHandler{base: handler}
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	var once sync.Once
	rotator := b.rotator
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
	return slog.New(handler), b.levelVar, cleanup, nil
}

func (b *Builder) buildReplaceAttr() func([]string, slog.Attr) slog.Attr {
	redact, custom := b.redact, b.replaceAttr
	if !redact && custom == nil {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if redact && IsSensitive(a.Key) && a.Value.Kind() != slog.KindGroup {
			a = slog.String(a.Key, Redacted)
		}
		if custom != nil {
			a = custom(groups, a)
		}
		return a
	}
}

// IsSensitive 判断字段名是否默认脱敏（大小写不敏感）。
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}
