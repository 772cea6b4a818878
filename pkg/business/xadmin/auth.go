package xadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/omeyang/xadmin/pkg/session/xclient"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// =============================================================================
// 类型
// =============================================================================

// Captcha 验证码。Image 为 base64 图片。
type Captcha struct {
	Key    string `json:"key" validate:"required"`
	Image  string `json:"image" validate:"required"`
	Length int    `json:"length" validate:"gt=0"`
}

// LoginRequest 登录请求。
type LoginRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	CaptchaKey  string `json:"captchaKey" validate:"required"`
	CaptchaCode string `json:"captchaCode" validate:"required"`
	RememberMe  bool   `json:"rememberMe"`
}

// LoginResult 登录结果。令牌已写入会话存储。
type LoginResult struct {
	UserID       int64  `json:"userId,omitempty"`
	Username     string `json:"username,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	ExpireTime   string `json:"expireTime,omitempty"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// RouterMeta 路由元信息。
type RouterMeta struct {
	Title        string   `json:"title,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	NoCache      bool     `json:"noCache,omitempty"`
	RequiresAuth *bool    `json:"requiresAuth,omitempty"`
	Permission   string   `json:"permission,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	Link         string   `json:"link,omitempty"`
}

// RouterVO 动态路由。
type RouterVO struct {
	Name       string      `json:"name,omitempty"`
	Path       string      `json:"path" validate:"required"`
	Hidden     bool        `json:"hidden,omitempty"`
	Redirect   string      `json:"redirect,omitempty"`
	Component  string      `json:"component,omitempty"`
	Query      string      `json:"query,omitempty"`
	AlwaysShow bool        `json:"alwaysShow,omitempty"`
	Meta       *RouterMeta `json:"meta,omitempty"`
	Children   []RouterVO  `json:"children,omitempty" validate:"dive"`
}

// UserInfo 当前用户信息。
type UserInfo struct {
	Username    string     `json:"username,omitempty"`
	Nickname    string     `json:"nickname,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Avatar      string     `json:"avatar,omitempty"`
	Sex         int        `json:"sex,omitempty"`
	DeptName    string     `json:"deptName,omitempty"`
	Status      int        `json:"status,omitempty"`
	LoginIP     string     `json:"loginIp,omitempty"`
	Remark      string     `json:"remark,omitempty"`
	Roles       []string   `json:"roles,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	Routers     []RouterVO `json:"routers,omitempty" validate:"dive"`
}

func (u UserInfo) clone() UserInfo {
	u.Roles = slices.Clone(u.Roles)
	u.Permissions = slices.Clone(u.Permissions)
	u.Routers = slices.Clone(u.Routers)
	return u
}

// =============================================================================
// AuthAPI
// =============================================================================

// AuthAPI 认证接口。
type AuthAPI struct {
	api
	state *UserState
}

// Captcha 获取验证码。
func (a *AuthAPI) Captcha(ctx context.Context) (*Captcha, error) {
	var c Captcha
	if err := a.client.Get(ctx, xclient.PathCaptcha, nil, &c, xclient.SkipAuth()); err != nil {
		return nil, err
	}
	if err := check("auth.captcha", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Login 登录并保存令牌。凭据错误只提示，不跳转登录页。
func (a *AuthAPI) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := check("auth.login", &req); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err := a.client.Post(ctx, xclient.PathLogin, &req, &raw,
		xclient.SkipAuth(), xclient.SkipAuthRedirect())
	if err != nil {
		return nil, err
	}

	pair, err := xtoken.ParsePair(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if pair.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	var res LoginResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: auth.login: %w", ErrInvalidPayload, err)
	}
	res.AccessToken = pair.AccessToken
	res.RefreshToken = pair.RefreshToken

	session := a.client.Session()
	session.Store().Save(ctx, pair)
	session.Health().Reset()
	a.logger.InfoContext(ctx, "xadmin: logged in", slog.String("username", req.Username))
	return &res, nil
}

// Info 获取当前用户信息并写入用户状态。
func (a *AuthAPI) Info(ctx context.Context) (*UserInfo, error) {
	var raw json.RawMessage
	if err := a.client.Get(ctx, xclient.PathInfo, nil, &raw); err != nil {
		return nil, err
	}
	normalized, err := normalizeUserInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: auth.info: %w", ErrInvalidPayload, err)
	}
	var info UserInfo
	if err := json.Unmarshal(normalized, &info); err != nil {
		return nil, fmt.Errorf("%w: auth.info: %w", ErrInvalidPayload, err)
	}
	if err := check("auth.info", &info); err != nil {
		return nil, err
	}
	a.state.SetUserInfo(&info)
	return &info, nil
}

// Routers 获取动态路由并写入用户状态。
func (a *AuthAPI) Routers(ctx context.Context) ([]RouterVO, error) {
	var routers []RouterVO
	if err := a.client.Get(ctx, xclient.PathRouters, nil, &routers); err != nil {
		return nil, err
	}
	for i := range routers {
		if err := check("auth.routers", &routers[i]); err != nil {
			return nil, err
		}
	}
	a.state.SetRouters(routers)
	return routers, nil
}

// Logout 通知后端登出并清空本地会话。后端错误只记录日志。
func (a *AuthAPI) Logout(ctx context.Context) {
	session := a.client.Session()
	if session.IsAuthed() {
		err := a.client.Post(ctx, xclient.PathLogout, nil, nil,
			xclient.SkipErrorToast(), xclient.SkipAuthRedirect(), xclient.SkipTokenRefresh())
		if err != nil {
			a.logger.DebugContext(ctx, "xadmin: logout request failed", slog.String("error", err.Error()))
		}
	}
	session.Logout(ctx, xclient.LogoutUser)
}

// normalizeUserInfo 把 profile 子对象展开到顶层。
// 顶层的 roles/permissions/routers 为数组时优先使用，否则取 profile 中的数组。
func normalizeUserInfo(raw []byte) ([]byte, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil || record == nil {
		return raw, nil //nolint:nilerr // 非对象交给后续解码报错
	}
	profileRaw, ok := record["profile"]
	if !ok || !isObject(profileRaw) {
		return raw, nil
	}
	var profile map[string]json.RawMessage
	if err := json.Unmarshal(profileRaw, &profile); err != nil {
		return nil, err
	}
	for _, key := range []string{"roles", "permissions", "routers"} {
		switch {
		case isArray(record[key]):
			profile[key] = record[key]
		case isArray(profile[key]):
		default:
			delete(profile, key)
		}
	}
	return json.Marshal(profile)
}

func isObject(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{"))
}

func isArray(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
}
