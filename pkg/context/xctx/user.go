package xctx

import "context"

// 用户日志属性 key。
const (
	KeyUserID   = "user_id"
	KeyUsername = "username"
)

const (
	keyUserID   = contextKey("xctx:user_id")
	keyUsername = contextKey("xctx:username")
)

// WithUser 注入当前控制台用户。空值不注入。
func WithUser(ctx context.Context, userID, username string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if userID != "" {
		ctx = context.WithValue(ctx, keyUserID, userID)
	}
	if username != "" {
		ctx = context.WithValue(ctx, keyUsername, username)
	}
	return ctx, nil
}

// UserID 读取用户 ID。
func UserID(ctx context.Context) string { return stringValue(ctx, keyUserID) }

// Username 读取用户名。
func Username(ctx context.Context) string { return stringValue(ctx, keyUsername) }
