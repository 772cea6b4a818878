package xtoken

import "errors"

var (
	// ErrNilBackend 表示未提供后端。
	ErrNilBackend = errors.New("xtoken: nil backend")

	// ErrInvalidKey 表示加密密钥长度不正确。
	ErrInvalidKey = errors.New("xtoken: invalid key size")

	// ErrSealedData 表示密文损坏或密钥不匹配。
	ErrSealedData = errors.New("xtoken: cannot open sealed data")

	// ErrNotJWT 表示 access token 不是 JWT 格式。
	ErrNotJWT = errors.New("xtoken: token is not a jwt")

	// ErrEmptyPath 表示文件后端路径为空。
	ErrEmptyPath = errors.New("xtoken: empty file path")

	// ErrNilClient 表示 Redis 客户端为空。
	ErrNilClient = errors.New("xtoken: nil redis client")
)
