package xtoken

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims access token 中可读取的声明。
// 解析不校验签名，只用于展示（如 CLI 的 status 命令）。
type TokenClaims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// Expired 判断在 now 时刻是否已过期。没有 exp 时返回 false。
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Claims 解析 access token 的声明。非 JWT 令牌返回 ErrNotJWT。
func Claims(accessToken string) (TokenClaims, error) {
	if strings.Count(accessToken, ".") != 2 {
		return TokenClaims{}, ErrNotJWT
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, mc); err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}

	out := TokenClaims{Extra: make(map[string]any)}
	if sub, err := mc.GetSubject(); err == nil {
		out.Subject = sub
	}
	if iss, err := mc.GetIssuer(); err == nil {
		out.Issuer = iss
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	for k, v := range mc {
		switch k {
		case "sub", "iss", "iat", "exp", "nbf", "aud", "jti":
			continue
		}
		out.Extra[k] = v
	}
	return out, nil
}
