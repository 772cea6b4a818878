package xtoken

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize 密钥长度（字节）。
const KeySize = chacha20poly1305.KeySize

// Sealer 对令牌文档做对称加解密。
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// XChaChaSealer 基于 XChaCha20-Poly1305 的 Sealer。
// 密文格式：nonce(24) || ciphertext。
type XChaChaSealer struct {
	key []byte
}

// NewXChaChaSealer 使用 32 字节密钥创建 Sealer。
func NewXChaChaSealer(key []byte) (*XChaChaSealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKey, len(key), KeySize)
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &XChaChaSealer{key: k}, nil
}

// Seal 加密。每次调用生成新的随机 nonce。
func (s *XChaChaSealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("xtoken: init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("xtoken: generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open 解密。密文被篡改或密钥不匹配时返回 ErrSealedData。
func (s *XChaChaSealer) Open(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("xtoken: init cipher: %w", err)
	}
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedData
	}
	nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, ErrSealedData
	}
	return plain, nil
}

// LoadOrCreateKey 读取密钥文件，不存在时生成随机密钥并以 0600 写入。
func LoadOrCreateKey(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: key file %s has %d bytes", ErrInvalidKey, path, len(key))
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("xtoken: read key file: %w", err)
	}

	key = make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("xtoken: generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("xtoken: create key dir: %w", err)
	}
	if err := writeFileAtomic(path, key); err != nil {
		return nil, fmt.Errorf("xtoken: write key file: %w", err)
	}
	return key, nil
}
