package mockadmin

import (
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/omeyang/xadmin/pkg/business/xadmin"
	"github.com/omeyang/xadmin/pkg/session/xenvelope"
)

// =============================================================================
// 认证接口
// =============================================================================

func (s *Server) captcha(c *gin.Context) {
	key := uuid.NewString()
	s.mu.Lock()
	s.captchas[key] = s.cfg.CaptchaCode
	s.mu.Unlock()
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("captcha:"+key))
	success(c, xadmin.Captcha{Key: key, Image: image, Length: len(s.cfg.CaptchaCode)})
}

func (s *Server) login(c *gin.Context) {
	var req xadmin.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, xenvelope.CodeParamError, "请求参数格式错误")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	want, ok := s.captchas[req.CaptchaKey]
	delete(s.captchas, req.CaptchaKey)
	if !ok || !strings.EqualFold(want, strings.TrimSpace(req.CaptchaCode)) {
		failure(c, xenvelope.CodeParamError, "验证码错误")
		return
	}
	u := s.data.userByName(req.Username)
	if u == nil || u.password != req.Password {
		failure(c, xenvelope.CodeUnauthorized, "用户名或密码错误")
		return
	}
	if u.Status != xadmin.StatusEnabled {
		failure(c, xenvelope.CodeAccountDisabled, "账号已停用")
		return
	}

	access, err := s.issueLocked(u, tokenAccess)
	if err != nil {
		failure(c, xenvelope.CodeSystemError, "")
		return
	}
	refresh, err := s.issueLocked(u, tokenRefresh)
	if err != nil {
		failure(c, xenvelope.CodeSystemError, "")
		return
	}
	u.LoginIP = c.ClientIP()
	u.LoginDate = s.now().Format(timeLayout)

	data := s.tokenPayload(access, refresh)
	data["userId"] = u.ID
	data["username"] = u.Username
	data["nickname"] = u.Nickname
	data["expireTime"] = s.now().Add(s.cfg.AccessTTL).Format(timeLayout)
	s.logger.Debug("mockadmin: login", slog.String("username", u.Username))
	success(c, data)
}

// refresh 以 query 参数 refreshToken 换取新的 access token。
func (s *Server) refresh(c *gin.Context) {
	token := c.Query("refreshToken")
	if token == "" {
		failure(c, xenvelope.CodeUnauthorized, "刷新令牌缺失")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cl, err := s.parseLocked(token, tokenRefresh)
	if err != nil {
		failure(c, xenvelope.CodeUnauthorized, "刷新令牌无效")
		return
	}
	u, ok := s.data.users[cl.UserID]
	if !ok || u.Status != xadmin.StatusEnabled {
		failure(c, xenvelope.CodeUnauthorized, "刷新令牌无效")
		return
	}
	access, err := s.issueLocked(u, tokenAccess)
	if err != nil {
		failure(c, xenvelope.CodeSystemError, "")
		return
	}
	refresh := token
	if s.cfg.RotateRefresh {
		s.revokeLocked(cl)
		if refresh, err = s.issueLocked(u, tokenRefresh); err != nil {
			failure(c, xenvelope.CodeSystemError, "")
			return
		}
	}
	success(c, s.tokenPayload(access, refresh))
}

func (s *Server) tokenPayload(access, refresh string) gin.H {
	if s.cfg.SnakeCaseTokens {
		return gin.H{"access_token": access, "refresh_token": refresh}
	}
	return gin.H{"accessToken": access, "refreshToken": refresh}
}

func (s *Server) info(c *gin.Context) {
	cl := currentClaims(c)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data.users[cl.UserID]
	if !ok {
		s.unauthorized(c, "用户不存在")
		return
	}
	roles, perms, _ := s.data.grants(u)
	profile := gin.H{
		"username": u.Username,
		"nickname": u.Nickname,
		"email":    u.Email,
		"phone":    u.Phone,
		"avatar":   u.Avatar,
		"sex":      u.Sex,
		"deptName": u.DeptName,
		"status":   u.Status,
		"loginIp":  u.LoginIP,
		"remark":   u.Remark,
	}
	if s.cfg.NestedProfile {
		success(c, gin.H{"profile": profile, "roles": roles, "permissions": perms})
		return
	}
	profile["roles"] = roles
	profile["permissions"] = perms
	success(c, profile)
}

func (s *Server) logout(c *gin.Context) {
	s.mu.Lock()
	s.revokeLocked(currentClaims(c))
	s.mu.Unlock()
	success(c, nil)
}

// routers 返回当前用户被授权的目录与菜单路由。
func (s *Server) routers(c *gin.Context) {
	cl := currentClaims(c)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data.users[cl.UserID]
	if !ok {
		s.unauthorized(c, "用户不存在")
		return
	}
	_, _, granted := s.data.grants(u)
	menus := make([]xadmin.MenuVO, 0, len(granted))
	for _, id := range sortedKeys(s.data.menus) {
		if _, ok := granted[id]; ok {
			menus = append(menus, *s.data.menus[id])
		}
	}
	sortMenus(menus)
	success(c, routerTree(buildMenuTree(menus, 0), true))
}
