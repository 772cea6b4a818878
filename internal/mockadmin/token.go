package mockadmin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/omeyang/xadmin/pkg/session/xenvelope"
)

// 令牌类型。
const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

const ctxClaimsKey = "mockadmin.claims"

var (
	errTokenType    = errors.New("mockadmin: unexpected token type")
	errTokenRevoked = errors.New("mockadmin: token revoked")
)

// claims JWT 载荷。
type claims struct {
	UserID     int64  `json:"uid"`
	Type       string `json:"typ"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

// issueLocked 为用户签发指定类型的令牌。调用方持有 s.mu。
func (s *Server) issueLocked(u *userRecord, typ string) (string, error) {
	ttl := s.cfg.AccessTTL
	if typ == tokenRefresh {
		ttl = s.cfg.RefreshTTL
	}
	now := s.now()
	c := claims{
		UserID:     u.ID,
		Type:       typ,
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("mockadmin: sign %s token: %w", typ, err)
	}
	return signed, nil
}

// parseLocked 校验签名、有效期、类型与吊销状态。调用方持有 s.mu。
func (s *Server) parseLocked(token, typ string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if c.Type != typ {
		return nil, errTokenType
	}
	if _, ok := s.revoked[c.ID]; ok || c.Generation < s.generation {
		return nil, errTokenRevoked
	}
	return &c, nil
}

func (s *Server) revokeLocked(c *claims) {
	if c != nil && c.ID != "" {
		s.revoked[c.ID] = struct{}{}
	}
}

// authenticate 校验 Bearer access token，通过后把载荷放入上下文。
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			s.unauthorized(c, "未认证")
			return
		}
		s.mu.Lock()
		cl, err := s.parseLocked(token, tokenAccess)
		s.mu.Unlock()
		if err != nil {
			msg := "令牌无效"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "令牌已过期"
			}
			s.unauthorized(c, msg)
			return
		}
		c.Set(ctxClaimsKey, cl)
		c.Next()
	}
}

func (s *Server) unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(s.cfg.UnauthorizedHTTPStatus,
		xenvelope.Failure(xenvelope.CodeUnauthorized, message, traceIDOf(c)))
}

// currentClaims 返回 authenticate 放入的载荷。
func currentClaims(c *gin.Context) *claims {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil
	}
	cl, _ := v.(*claims) //nolint:errcheck // 类型由 authenticate 保证
	return cl
}
