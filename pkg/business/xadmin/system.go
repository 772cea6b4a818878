package xadmin

import (
	"context"
	"net/url"
	"strings"
)

// 系统管理接口路径。
const (
	PathUser         = "/system/user"
	PathRole         = "/system/role"
	PathDept         = "/system/dept"
	PathMenu         = "/system/menu"
	PathDictType     = "/system/dict/type"
	PathDictData     = "/system/dict/data"
	pathList         = "/list"
	pathTreeSelect   = "/treeselect"
	pathDictDataType = PathDictData + "/type/"
)

// =============================================================================
// 用户
// =============================================================================

// UserAPI 用户管理。
type UserAPI struct{ api }

// List 分页查询用户。
func (a *UserAPI) List(ctx context.Context, q UserQuery) (*Page[UserVO], error) {
	var page Page[UserVO]
	if err := a.get(ctx, PathUser+pathList, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get 查询用户详情。
func (a *UserAPI) Get(ctx context.Context, id int64) (*UserVO, error) {
	var u UserVO
	if err := a.get(ctx, idPath(PathUser, id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create 新增用户，返回用户 ID。
func (a *UserAPI) Create(ctx context.Context, req UserCreateRequest) (int64, error) {
	return a.create(ctx, "users.create", PathUser, &req)
}

// Update 修改用户。
func (a *UserAPI) Update(ctx context.Context, req UserUpdateRequest) error {
	return a.update(ctx, "users.update", PathUser, &req)
}

// Delete 批量删除用户。
func (a *UserAPI) Delete(ctx context.Context, ids ...int64) error {
	return a.remove(ctx, PathUser, ids...)
}

// =============================================================================
// 角色
// =============================================================================

// RoleAPI 角色管理。
type RoleAPI struct{ api }

// List 分页查询角色。
func (a *RoleAPI) List(ctx context.Context, q RoleQuery) (*Page[RoleVO], error) {
	var page Page[RoleVO]
	if err := a.get(ctx, PathRole+pathList, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get 查询角色详情。
func (a *RoleAPI) Get(ctx context.Context, id int64) (*RoleVO, error) {
	var r RoleVO
	if err := a.get(ctx, idPath(PathRole, id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MenuIDs 查询角色已授权的菜单 ID。
func (a *RoleAPI) MenuIDs(ctx context.Context, id int64) ([]int64, error) {
	var ids []int64
	if err := a.get(ctx, idPath(PathRole, id)+"/menus", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Update 修改角色。
func (a *RoleAPI) Update(ctx context.Context, req RoleUpdateRequest) error {
	return a.update(ctx, "roles.update", PathRole, &req)
}

// =============================================================================
// 部门
// =============================================================================

// DeptAPI 部门管理。
type DeptAPI struct{ api }

// Tree 查询部门树。
func (a *DeptAPI) Tree(ctx context.Context, q DeptQuery) ([]DeptVO, error) {
	var tree []DeptVO
	if err := a.get(ctx, PathDept+pathList, q, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// TreeSelect 查询部门下拉树。
func (a *DeptAPI) TreeSelect(ctx context.Context, q DeptQuery) ([]TreeSelectVO, error) {
	var tree []TreeSelectVO
	if err := a.get(ctx, PathDept+pathTreeSelect, q, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Get 查询部门详情。
func (a *DeptAPI) Get(ctx context.Context, id int64) (*DeptVO, error) {
	var d DeptVO
	if err := a.get(ctx, idPath(PathDept, id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create 新增部门，返回部门 ID。
func (a *DeptAPI) Create(ctx context.Context, req DeptCreateRequest) (int64, error) {
	return a.create(ctx, "depts.create", PathDept, &req)
}

// Update 修改部门。
func (a *DeptAPI) Update(ctx context.Context, req DeptUpdateRequest) error {
	return a.update(ctx, "depts.update", PathDept, &req)
}

// Delete 删除部门。
func (a *DeptAPI) Delete(ctx context.Context, id int64) error {
	return a.remove(ctx, PathDept, id)
}

// =============================================================================
// 菜单
// =============================================================================

// MenuAPI 菜单管理。
type MenuAPI struct{ api }

// Tree 查询菜单树。
func (a *MenuAPI) Tree(ctx context.Context, q MenuQuery) ([]MenuVO, error) {
	var tree []MenuVO
	if err := a.get(ctx, PathMenu+pathList, q, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// TreeSelect 查询菜单下拉树。
func (a *MenuAPI) TreeSelect(ctx context.Context, q MenuQuery) ([]TreeSelectVO, error) {
	var tree []TreeSelectVO
	if err := a.get(ctx, PathMenu+pathTreeSelect, q, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Get 查询菜单详情。
func (a *MenuAPI) Get(ctx context.Context, id int64) (*MenuVO, error) {
	var m MenuVO
	if err := a.get(ctx, idPath(PathMenu, id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create 新增菜单，返回菜单 ID。
func (a *MenuAPI) Create(ctx context.Context, req MenuCreateRequest) (int64, error) {
	return a.create(ctx, "menus.create", PathMenu, &req)
}

// Update 修改菜单。
func (a *MenuAPI) Update(ctx context.Context, req MenuUpdateRequest) error {
	return a.update(ctx, "menus.update", PathMenu, &req)
}

// Delete 删除菜单。
func (a *MenuAPI) Delete(ctx context.Context, id int64) error {
	return a.remove(ctx, PathMenu, id)
}

// =============================================================================
// 字典
// =============================================================================

// DictAPI 字典管理。
type DictAPI struct{ api }

// Types 分页查询字典类型。
func (a *DictAPI) Types(ctx context.Context, q DictTypeQuery) (*Page[DictTypeVO], error) {
	var page Page[DictTypeVO]
	if err := a.get(ctx, PathDictType+pathList, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Type 查询字典类型详情。
func (a *DictAPI) Type(ctx context.Context, id int64) (*DictTypeVO, error) {
	var t DictTypeVO
	if err := a.get(ctx, idPath(PathDictType, id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateType 新增字典类型，返回 ID。
func (a *DictAPI) CreateType(ctx context.Context, req DictTypeCreateRequest) (int64, error) {
	return a.create(ctx, "dicts.create_type", PathDictType, &req)
}

// UpdateType 修改字典类型。
func (a *DictAPI) UpdateType(ctx context.Context, req DictTypeUpdateRequest) error {
	return a.update(ctx, "dicts.update_type", PathDictType, &req)
}

// DeleteTypes 批量删除字典类型。
func (a *DictAPI) DeleteTypes(ctx context.Context, ids ...int64) error {
	return a.remove(ctx, PathDictType, ids...)
}

// DataByType 按类型查询字典数据。
func (a *DictAPI) DataByType(ctx context.Context, dictType string) ([]DictDataVO, error) {
	dictType = strings.TrimSpace(dictType)
	if dictType == "" {
		return nil, ErrMissingDictType
	}
	var data []DictDataVO
	if err := a.get(ctx, pathDictDataType+url.PathEscape(dictType), nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Data 查询字典数据，DictType 必填。
func (a *DictAPI) Data(ctx context.Context, q DictDataQuery) ([]DictDataVO, error) {
	if strings.TrimSpace(q.DictType) == "" {
		return nil, ErrMissingDictType
	}
	var data []DictDataVO
	if err := a.get(ctx, PathDictData+pathList, q, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// CreateData 新增字典数据，返回字典编码。
func (a *DictAPI) CreateData(ctx context.Context, req DictDataCreateRequest) (int64, error) {
	return a.create(ctx, "dicts.create_data", PathDictData, &req)
}

// UpdateData 修改字典数据。
func (a *DictAPI) UpdateData(ctx context.Context, req DictDataUpdateRequest) error {
	return a.update(ctx, "dicts.update_data", PathDictData, &req)
}

// DeleteData 批量删除字典数据。
func (a *DictAPI) DeleteData(ctx context.Context, codes ...int64) error {
	return a.remove(ctx, PathDictData, codes...)
}
