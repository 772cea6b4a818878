package xadmin

import (
	"slices"
	"sync"
)

// 通配权限：持有任一即拥有全部权限。
const (
	PermissionAll      = "*"
	PermissionAllTriad = "*:*:*"
)

// UserState 当前登录用户的资料、角色、权限与路由。并发安全。
type UserState struct {
	mu            sync.RWMutex
	profile       *UserInfo
	roles         map[string]struct{}
	permissions   map[string]struct{}
	routers       []RouterVO
	routersLoaded bool
}

// NewUserState 创建空状态。
func NewUserState() *UserState { return &UserState{} }

// SetUserInfo 设置用户信息。info 携带非空路由时同时视为路由已加载。
func (s *UserState) SetUserInfo(info *UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info == nil {
		s.clearLocked()
		return
	}
	cp := info.clone()
	s.profile = &cp
	s.roles = toSet(cp.Roles)
	s.permissions = toSet(cp.Permissions)
	if len(cp.Routers) > 0 {
		s.routers = cp.Routers
		s.routersLoaded = true
	}
}

// SetRouters 设置动态路由。
func (s *UserState) SetRouters(routers []RouterVO) {
	s.mu.Lock()
	s.routers = slices.Clone(routers)
	s.routersLoaded = true
	s.mu.Unlock()
}

// Clear 清空全部状态。
func (s *UserState) Clear() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
}

func (s *UserState) clearLocked() {
	s.profile = nil
	s.roles = nil
	s.permissions = nil
	s.routers = nil
	s.routersLoaded = false
}

// Loaded 用户信息是否已加载。
func (s *UserState) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil
}

// RoutersLoaded 路由是否已加载。
func (s *UserState) RoutersLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routersLoaded
}

// Profile 返回用户信息副本。
func (s *UserState) Profile() (UserInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return UserInfo{}, false
	}
	return s.profile.clone(), true
}

// Routers 返回路由副本。
func (s *UserState) Routers() []RouterVO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.routers)
}

// =============================================================================
// 权限判断
// =============================================================================

// HasRole 空角色视为无需角色。
func (s *UserState) HasRole(role string) bool {
	return role == "" || s.HasAnyRole(role)
}

// HasAnyRole 持有任一角色即返回 true；列表为空返回 true。
func (s *UserState) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsAny(s.roles, roles)
}

// HasPermission 空权限视为无需权限。
func (s *UserState) HasPermission(permission string) bool {
	return permission == "" || s.HasAnyPermission(permission)
}

// HasAnyPermission 持有任一权限或通配权限即返回 true；列表为空返回 true。
func (s *UserState) HasAnyPermission(permissions ...string) bool {
	if len(permissions) == 0 {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if containsAny(s.permissions, []string{PermissionAll, PermissionAllTriad}) {
		return true
	}
	return containsAny(s.permissions, permissions)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func containsAny(set map[string]struct{}, items []string) bool {
	for _, it := range items {
		if _, ok := set[it]; ok {
			return true
		}
	}
	return false
}
