package xconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置格式
type Format string

// 支持的格式
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// 配置相关错误
var (
	ErrEmptyPath         = errors.New("xconf: empty config path")
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")
	ErrLoadFailed        = errors.New("xconf: failed to load config")
	ErrParseFailed       = errors.New("xconf: failed to parse config")
	ErrUnmarshalFailed   = errors.New("xconf: failed to unmarshal config")
	ErrNotFileBacked     = errors.New("xconf: source is not file backed")
)

// Option 配置选项
type Option func(*options)

type options struct {
	delim     string
	tag       string
	envPrefix string
	lookupEnv func() []string
}

func defaultOptions() *options {
	return &options{
		delim:     ".",
		tag:       "koanf",
		lookupEnv: os.Environ,
	}
}

// WithDelim 设置键分隔符，默认 "."。空串忽略。
func WithDelim(delim string) Option {
	return func(o *options) {
		if delim != "" {
			o.delim = delim
		}
	}
}

// WithTag 设置 Unmarshal 使用的结构体标签，默认 "koanf"。
func WithTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.tag = tag
		}
	}
}

// WithEnvPrefix 启用环境变量覆盖，prefix 如 "XADMIN_"。
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// withEnviron 替换环境变量来源，测试用。
func withEnviron(fn func() []string) Option {
	return func(o *options) {
		if fn != nil {
			o.lookupEnv = fn
		}
	}
}

// Source 配置源，并发安全。
type Source struct {
	path   string
	format Format
	opts   *options

	k        atomic.Pointer[koanf.Koanf]
	reloadMu sync.Mutex
}

// New 从文件加载，格式由扩展名决定。
func New(path string, opts ...Option) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	s := newSource(path, format, opts)
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromBytes 从字节数据加载，空数据得到空配置。
func NewFromBytes(data []byte, format Format, opts ...Option) (*Source, error) {
	if !format.valid() {
		return nil, ErrUnsupportedFormat
	}
	s := newSource("", format, opts)
	k, err := s.parse(data)
	if err != nil {
		return nil, err
	}
	s.k.Store(k)
	return s, nil
}

func newSource(path string, format Format, opts []Option) *Source {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Source{path: path, format: format, opts: o}
}

// Koanf 返回当前快照。Reload 后旧指针仍可读但不再更新。
func (s *Source) Koanf() *koanf.Koanf {
	return s.k.Load()
}

// Unmarshal 将 path 下的配置解码到 target，path 为空时解码全部。
func (s *Source) Unmarshal(path string, target any) error {
	if err := s.k.Load().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: s.opts.tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload 重新读取文件。失败时保留旧快照。
func (s *Source) Reload() error {
	if s.path == "" {
		return ErrNotFileBacked
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := s.parse(data)
	if err != nil {
		return err
	}
	s.k.Store(k)
	return nil
}

// Path 文件路径，字节源为空串。
func (s *Source) Path() string { return s.path }

// Format 配置格式
func (s *Source) Format() Format { return s.format }

func (s *Source) parse(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(s.opts.delim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), s.format.parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if err := applyEnv(k, s.opts); err != nil {
		return nil, err
	}
	return k, nil
}

// =============================================================================
// 格式
// =============================================================================

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func (f Format) valid() bool {
	return f == FormatYAML || f == FormatJSON
}

func (f Format) parser() koanf.Parser {
	if f == FormatJSON {
		return json.Parser()
	}
	return yaml.Parser()
}
