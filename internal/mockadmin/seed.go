package mockadmin

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/omeyang/xadmin/pkg/business/xadmin"
)

// 种子账号。
const (
	AdminUsername  = "admin"
	AdminPassword  = "admin123"
	EditorUsername = "editor"
	EditorPassword = "editor123"
)

const timeLayout = "2006-01-02 15:04:05"

type userRecord struct {
	xadmin.UserVO
	password string
	deptID   int64
	roleIDs  []int64
}

type roleRecord struct {
	xadmin.RoleVO
	menuIDs []int64
	deptIDs []int64
}

// dataset 内存数据。所有访问由 Server.mu 保护。
type dataset struct {
	users     map[int64]*userRecord
	roles     map[int64]*roleRecord
	depts     map[int64]*xadmin.DeptVO
	menus     map[int64]*xadmin.MenuVO
	dictTypes map[int64]*xadmin.DictTypeVO
	dictData  map[int64]*xadmin.DictDataVO
	lastID    int64
}

func (d *dataset) nextID() int64 {
	d.lastID++
	return d.lastID
}

func (d *dataset) userByName(username string) *userRecord {
	for _, u := range d.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// grants 汇总用户角色授予的角色标识、权限与菜单。
func (d *dataset) grants(u *userRecord) (roleKeys, perms []string, menuIDs map[int64]struct{}) {
	menuIDs = make(map[int64]struct{})
	all := false
	for _, rid := range u.roleIDs {
		r, ok := d.roles[rid]
		if !ok || r.Status != xadmin.StatusEnabled {
			continue
		}
		roleKeys = append(roleKeys, r.RoleKey)
		if r.RoleKey == "admin" {
			all = true
		}
		for _, mid := range r.menuIDs {
			menuIDs[mid] = struct{}{}
		}
	}
	if all {
		for id := range d.menus {
			menuIDs[id] = struct{}{}
		}
		return roleKeys, []string{xadmin.PermissionAllTriad}, menuIDs
	}
	for _, id := range sortedKeys(d.menus) {
		if _, ok := menuIDs[id]; ok && d.menus[id].Perms != "" {
			perms = append(perms, d.menus[id].Perms)
		}
	}
	return roleKeys, perms, menuIDs
}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}

func stamp() string { return time.Now().Format(timeLayout) }

// seed 构造初始数据：两个账号、两个角色、三级部门、系统管理菜单与两组字典。
func seed() *dataset {
	d := &dataset{
		users:     make(map[int64]*userRecord),
		roles:     make(map[int64]*roleRecord),
		depts:     make(map[int64]*xadmin.DeptVO),
		menus:     make(map[int64]*xadmin.MenuVO),
		dictTypes: make(map[int64]*xadmin.DictTypeVO),
		dictData:  make(map[int64]*xadmin.DictDataVO),
	}
	now := stamp()

	for _, dept := range []xadmin.DeptVO{
		{DeptName: "总公司", ParentID: 0, Ancestors: "0", OrderNum: 0, Leader: "admin"},
		{DeptName: "研发部", ParentID: 1, Ancestors: "0,1", OrderNum: 1},
		{DeptName: "运营部", ParentID: 1, Ancestors: "0,1", OrderNum: 2},
	} {
		dept.ID = d.nextID()
		dept.CreateTime = now
		d.depts[dept.ID] = &dept
	}

	type menuSeed struct {
		parent   int
		name     string
		path     string
		comp     string
		menuType string
		perms    string
	}
	seeds := []menuSeed{
		{-1, "系统管理", "system", "Layout", xadmin.MenuTypeDirectory, ""},
		{0, "用户管理", "user", "system/user/index", xadmin.MenuTypeMenu, "system:user:list"},
		{1, "用户新增", "", "", xadmin.MenuTypeButton, "system:user:add"},
		{0, "角色管理", "role", "system/role/index", xadmin.MenuTypeMenu, "system:role:list"},
		{0, "部门管理", "dept", "system/dept/index", xadmin.MenuTypeMenu, "system:dept:list"},
		{0, "菜单管理", "menu", "system/menu/index", xadmin.MenuTypeMenu, "system:menu:list"},
		{0, "字典管理", "dict", "system/dict/index", xadmin.MenuTypeMenu, "system:dict:list"},
	}
	menuIDs := make([]int64, len(seeds))
	for i, ms := range seeds {
		id := d.nextID()
		menuIDs[i] = id
		var parent int64
		if ms.parent >= 0 {
			parent = menuIDs[ms.parent]
		}
		d.menus[id] = &xadmin.MenuVO{
			ID: id, ParentID: parent, MenuName: ms.name, OrderNum: i,
			Path: ms.path, Component: ms.comp, MenuType: ms.menuType, Perms: ms.perms,
		}
	}

	adminRole := &roleRecord{RoleVO: xadmin.RoleVO{RoleName: "超级管理员", RoleKey: "admin", OrderNum: 1, DataScope: 1}}
	editorRole := &roleRecord{
		RoleVO:  xadmin.RoleVO{RoleName: "编辑", RoleKey: "editor", OrderNum: 2, DataScope: 2},
		menuIDs: []int64{menuIDs[0], menuIDs[1], menuIDs[6]},
		deptIDs: []int64{2},
	}
	for _, r := range []*roleRecord{adminRole, editorRole} {
		r.ID = d.nextID()
		r.CreateTime = now
		d.roles[r.ID] = r
	}

	for _, u := range []*userRecord{
		{
			UserVO:   xadmin.UserVO{Username: AdminUsername, Nickname: "管理员", Email: "admin@example.com", DeptName: "总公司"},
			password: AdminPassword, deptID: 1, roleIDs: []int64{adminRole.ID},
		},
		{
			UserVO:   xadmin.UserVO{Username: EditorUsername, Nickname: "编辑", DeptName: "研发部"},
			password: EditorPassword, deptID: 2, roleIDs: []int64{editorRole.ID},
		},
	} {
		u.ID = d.nextID()
		u.CreateTime = now
		d.users[u.ID] = u
	}

	for _, dt := range []struct {
		name, typ string
		items     [][2]string
	}{
		{"用户性别", "sys_user_sex", [][2]string{{"男", "0"}, {"女", "1"}, {"未知", "2"}}},
		{"系统开关", "sys_normal_disable", [][2]string{{"正常", "0"}, {"停用", "1"}}},
	} {
		id := d.nextID()
		d.dictTypes[id] = &xadmin.DictTypeVO{
			BaseVO: xadmin.BaseVO{ID: id, CreateTime: now}, DictName: dt.name, DictType: dt.typ,
		}
		for i, item := range dt.items {
			did := d.nextID()
			isDefault := "N"
			if i == 0 {
				isDefault = "Y"
			}
			d.dictData[did] = &xadmin.DictDataVO{
				BaseVO: xadmin.BaseVO{ID: did, CreateTime: now}, DictType: dt.typ,
				DictLabel: item[0], DictValue: item[1], DictSort: i, IsDefault: isDefault,
			}
		}
	}
	return d
}

// =============================================================================
// 树构建
// =============================================================================

func buildDeptTree(depts []xadmin.DeptVO, parent int64) []xadmin.DeptVO {
	var out []xadmin.DeptVO
	for _, dept := range depts {
		if dept.ParentID == parent {
			dept.Children = buildDeptTree(depts, dept.ID)
			out = append(out, dept)
		}
	}
	return out
}

func buildMenuTree(menus []xadmin.MenuVO, parent int64) []xadmin.MenuVO {
	var out []xadmin.MenuVO
	for _, m := range menus {
		if m.ParentID == parent {
			m.Children = buildMenuTree(menus, m.ID)
			out = append(out, m)
		}
	}
	return out
}

func deptSelect(tree []xadmin.DeptVO) []xadmin.TreeSelectVO {
	out := make([]xadmin.TreeSelectVO, 0, len(tree))
	for _, n := range tree {
		out = append(out, xadmin.TreeSelectVO{ID: n.ID, Label: n.DeptName, Children: deptSelect(n.Children)})
	}
	return out
}

func menuSelect(tree []xadmin.MenuVO) []xadmin.TreeSelectVO {
	out := make([]xadmin.TreeSelectVO, 0, len(tree))
	for _, n := range tree {
		out = append(out, xadmin.TreeSelectVO{ID: n.ID, Label: n.MenuName, Children: menuSelect(n.Children)})
	}
	return out
}

// routerTree 把目录与菜单转换为前端路由，按钮不生成路由。
func routerTree(tree []xadmin.MenuVO, root bool) []xadmin.RouterVO {
	var out []xadmin.RouterVO
	for _, m := range tree {
		if m.MenuType == xadmin.MenuTypeButton || m.Status != xadmin.StatusEnabled {
			continue
		}
		path := m.Path
		if root {
			path = "/" + path
		}
		r := xadmin.RouterVO{
			Name:      m.Path,
			Path:      path,
			Hidden:    m.Visible != 0,
			Component: m.Component,
			Meta:      &xadmin.RouterMeta{Title: m.MenuName, Icon: m.Icon, Permission: m.Perms},
			Children:  routerTree(m.Children, false),
		}
		if m.MenuType == xadmin.MenuTypeDirectory {
			r.AlwaysShow = true
			r.Redirect = "noRedirect"
		}
		out = append(out, r)
	}
	return out
}

func sortByOrder[T any](items []T, order func(T) (int, int64)) {
	slices.SortStableFunc(items, func(a, b T) int {
		ao, aid := order(a)
		bo, bid := order(b)
		if c := cmp.Compare(ao, bo); c != 0 {
			return c
		}
		return cmp.Compare(aid, bid)
	})
}
