package xtoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFileName 令牌文件默认名，对应存储键 quantum:auth。
const DefaultFileName = "quantum-auth.json"

// DefaultPath 返回默认令牌文件路径：$XDG_CONFIG_HOME/xadmin/quantum-auth.json。
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("xtoken: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "xadmin", DefaultFileName), nil
}

// FileBackend 以 JSON 文件保存令牌，写入采用临时文件 + rename，权限 0600。
type FileBackend struct {
	path       string
	legacyPath string
	sealer     Sealer

	mu sync.Mutex
}

// FileOption 文件后端选项。
type FileOption func(*FileBackend)

// WithSealer 设置加密器，文件内容为密文。
func WithSealer(s Sealer) FileOption {
	return func(b *FileBackend) {
		b.sealer = s
	}
}

// WithLegacyPath 设置旧版明文令牌文件路径。
// 主文件为空时从旧文件迁移令牌，迁移后删除旧文件。
func WithLegacyPath(path string) FileOption {
	return func(b *FileBackend) {
		b.legacyPath = path
	}
}

// NewFileBackend 创建文件后端。
func NewFileBackend(path string, opts ...FileOption) (*FileBackend, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	b := &FileBackend{path: path}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// NewEncryptedFileBackend 创建加密文件后端。
// keyPath 不存在时自动生成密钥。
func NewEncryptedFileBackend(path, keyPath string, opts ...FileOption) (*FileBackend, error) {
	key, err := LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	sealer, err := NewXChaChaSealer(key)
	if err != nil {
		return nil, err
	}
	return NewFileBackend(path, append(opts, WithSealer(sealer))...)
}

// Path 返回令牌文件路径。
func (b *FileBackend) Path() string { return b.path }

// Load 实现 Backend。
func (b *FileBackend) Load(context.Context) (TokenPair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pair, err := b.read()
	if err != nil {
		return TokenPair{}, err
	}
	if !pair.IsZero() {
		b.removeLegacy()
		return pair, nil
	}
	return b.migrateLegacy()
}

// Save 实现 Backend。零值令牌对等同于 Clear。
func (b *FileBackend) Save(_ context.Context, pair TokenPair) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pair.IsZero() {
		return b.clear()
	}
	return b.write(pair)
}

// Clear 实现 Backend。
func (b *FileBackend) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clear()
}

func (b *FileBackend) read() (TokenPair, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return TokenPair{}, nil
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("xtoken: read token file: %w", err)
	}
	if len(data) == 0 {
		return TokenPair{}, nil
	}
	if b.sealer != nil {
		if data, err = b.sealer.Open(data); err != nil {
			return TokenPair{}, err
		}
	}
	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return TokenPair{}, fmt.Errorf("xtoken: decode token file: %w", err)
	}
	return pair, nil
}

func (b *FileBackend) write(pair TokenPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("xtoken: encode token: %w", err)
	}
	if b.sealer != nil {
		if data, err = b.sealer.Seal(data); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("xtoken: create token dir: %w", err)
	}
	if err := writeFileAtomic(b.path, data); err != nil {
		return fmt.Errorf("xtoken: write token file: %w", err)
	}
	return nil
}

func (b *FileBackend) clear() error {
	b.removeLegacy()
	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("xtoken: remove token file: %w", err)
	}
	return nil
}

// migrateLegacy 读取旧版明文文件并写入主文件。旧文件无法解析时直接丢弃。
func (b *FileBackend) migrateLegacy() (TokenPair, error) {
	if b.legacyPath == "" {
		return TokenPair{}, nil
	}
	data, err := os.ReadFile(b.legacyPath)
	if err != nil {
		return TokenPair{}, nil //nolint:nilerr // 旧文件缺失或不可读都视为无令牌
	}
	var legacy TokenPair
	if err := json.Unmarshal(data, &legacy); err != nil || legacy.IsZero() {
		b.removeLegacy()
		return TokenPair{}, nil
	}
	if err := b.write(legacy); err != nil {
		return TokenPair{}, err
	}
	b.removeLegacy()
	return legacy, nil
}

func (b *FileBackend) removeLegacy() {
	if b.legacyPath != "" {
		_ = os.Remove(b.legacyPath)
	}
}

// writeFileAtomic 写临时文件后 rename，避免读到半截内容。
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
