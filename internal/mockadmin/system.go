package mockadmin

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/omeyang/xadmin/pkg/business/xadmin"
	"github.com/omeyang/xadmin/pkg/session/xenvelope"
)

// 分页默认值。
const (
	defaultPageNum  = 1
	defaultPageSize = 10
)

// =============================================================================
// 参数辅助
// =============================================================================

// paginate 按 pageNum/pageSize 截取记录。
func paginate[T any](c *gin.Context, records []T) xadmin.Page[T] {
	num := queryInt(c, "pageNum", defaultPageNum)
	size := queryInt(c, "pageSize", defaultPageSize)
	total := int64(len(records))
	page := xadmin.Page[T]{
		PageNum:  int64(num),
		PageSize: int64(size),
		Total:    total,
		Pages:    (total + int64(size) - 1) / int64(size),
		Records:  []T{},
	}
	start := (num - 1) * size
	if start < len(records) {
		page.Records = records[start:min(start+size, len(records))]
	}
	return page
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// statusMatches status 参数缺省时不过滤。
func statusMatches(c *gin.Context, status int) bool {
	raw, ok := c.GetQuery("status")
	if !ok || raw == "" {
		return true
	}
	want, err := strconv.Atoi(raw)
	return err == nil && want == status
}

func contains(value, sub string) bool {
	return sub == "" || strings.Contains(value, sub)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		failure(c, xenvelope.CodeParamInvalid, "ID 格式错误")
		return 0, false
	}
	return id, true
}

// pathIDs 解析逗号分隔的 ID 列表。
func pathIDs(c *gin.Context) ([]int64, bool) {
	parts := strings.Split(c.Param("id"), ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			failure(c, xenvelope.CodeParamInvalid, "ID 格式错误")
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		failure(c, xenvelope.CodeParamError, "请求参数格式错误")
		return false
	}
	return true
}

func notFound(c *gin.Context) {
	failure(c, xenvelope.CodeDataNotFound, "")
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (s *Server) audit(c *gin.Context, b *xadmin.BaseVO, created bool) {
	now := s.now().Format(timeLayout)
	var by int64
	if cl := currentClaims(c); cl != nil {
		by = cl.UserID
	}
	if created {
		b.CreateTime, b.CreateBy = now, by
	}
	b.UpdateTime, b.UpdateBy = now, by
	b.Version++
}

func sortMenus(menus []xadmin.MenuVO) {
	sortByOrder(menus, func(m xadmin.MenuVO) (int, int64) { return m.OrderNum, m.ID })
}

func sortDepts(depts []xadmin.DeptVO) {
	sortByOrder(depts, func(d xadmin.DeptVO) (int, int64) { return d.OrderNum, d.ID })
}

// =============================================================================
// 用户
// =============================================================================

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deptID, _ := strconv.ParseInt(c.Query("deptId"), 10, 64) //nolint:errcheck // 缺省为 0
	var records []xadmin.UserVO
	for _, id := range sortedKeys(s.data.users) {
		u := s.data.users[id]
		if !contains(u.Username, c.Query("username")) ||
			!contains(u.Nickname, c.Query("nickname")) ||
			!contains(u.Phone, c.Query("phone")) ||
			!statusMatches(c, u.Status) ||
			(deptID > 0 && u.deptID != deptID) {
			continue
		}
		records = append(records, s.userView(u))
	}
	success(c, paginate(c, records))
}

// userView 返回不含密码、带角色与权限的用户视图。调用方持有 s.mu。
func (s *Server) userView(u *userRecord) xadmin.UserVO {
	vo := u.UserVO
	vo.Roles, vo.Permissions, _ = s.data.grants(u)
	return vo
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	if !ok {
		notFound(c)
		return
	}
	success(c, s.userView(u))
}

func (s *Server) createUser(c *gin.Context) {
	var req xadmin.UserCreateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.userByName(req.Username) != nil {
		failure(c, xenvelope.CodeDataAlreadyExists, "用户名已存在")
		return
	}
	u := &userRecord{
		UserVO: xadmin.UserVO{
			Username: req.Username,
			Nickname: req.Nickname,
			Phone:    req.Phone,
			Email:    req.Email,
			Sex:      intOr(req.Sex, 0),
			Status:   intOr(req.Status, xadmin.StatusEnabled),
			Remark:   req.Remark,
		},
		password: req.Password,
		deptID:   req.DeptID,
		roleIDs:  req.RoleIDs,
	}
	if dept, ok := s.data.depts[req.DeptID]; ok {
		u.DeptName = dept.DeptName
	}
	u.ID = s.data.nextID()
	s.audit(c, &u.BaseVO, true)
	s.data.users[u.ID] = u
	success(c, u.ID)
}

func (s *Server) updateUser(c *gin.Context) {
	var req xadmin.UserUpdateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data.users[req.ID]
	if !ok {
		notFound(c)
		return
	}
	u.Nickname = req.Nickname
	u.Phone = req.Phone
	u.Email = req.Email
	u.Sex = intOr(req.Sex, u.Sex)
	u.Status = intOr(req.Status, u.Status)
	u.Remark = req.Remark
	if req.DeptID > 0 {
		u.deptID = req.DeptID
		if dept, ok := s.data.depts[req.DeptID]; ok {
			u.DeptName = dept.DeptName
		}
	}
	if req.RoleIDs != nil {
		u.roleIDs = req.RoleIDs
	}
	s.audit(c, &u.BaseVO, false)
	success(c, nil)
}

func (s *Server) deleteUsers(c *gin.Context) {
	ids, ok := pathIDs(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl := currentClaims(c); cl != nil {
		for _, id := range ids {
			if id == cl.UserID {
				failure(c, xenvelope.CodeOperationFailed, "不能删除当前用户")
				return
			}
		}
	}
	for _, id := range ids {
		delete(s.data.users, id)
	}
	success(c, nil)
}

// =============================================================================
// 角色
// =============================================================================

func (s *Server) listRoles(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []xadmin.RoleVO
	for _, id := range sortedKeys(s.data.roles) {
		r := s.data.roles[id]
		if contains(r.RoleName, c.Query("roleName")) &&
			contains(r.RoleKey, c.Query("roleKey")) &&
			statusMatches(c, r.Status) {
			records = append(records, r.RoleVO)
		}
	}
	success(c, paginate(c, records))
}

func (s *Server) getRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.roles[id]
	if !ok {
		notFound(c)
		return
	}
	success(c, r.RoleVO)
}

func (s *Server) roleMenus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.roles[id]
	if !ok {
		notFound(c)
		return
	}
	ids := r.menuIDs
	if r.RoleKey == "admin" {
		ids = sortedKeys(s.data.menus)
	}
	success(c, append([]int64{}, ids...))
}

func (s *Server) updateRole(c *gin.Context) {
	var req xadmin.RoleUpdateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data.roles[req.ID]
	if !ok {
		notFound(c)
		return
	}
	for _, other := range s.data.roles {
		if other.ID != r.ID && other.RoleKey == req.RoleKey {
			failure(c, xenvelope.CodeDataAlreadyExists, "角色标识已存在")
			return
		}
	}
	r.RoleName = req.RoleName
	r.RoleKey = req.RoleKey
	r.OrderNum = req.OrderNum
	r.DataScope = req.DataScope
	r.Status = intOr(req.Status, r.Status)
	r.Remark = req.Remark
	if req.MenuIDs != nil {
		r.menuIDs = req.MenuIDs
	}
	if req.DeptIDs != nil {
		r.deptIDs = req.DeptIDs
	}
	s.audit(c, &r.BaseVO, false)
	success(c, nil)
}

// =============================================================================
// 部门
// =============================================================================

// filteredDepts 调用方持有 s.mu。
func (s *Server) filteredDepts(c *gin.Context) []xadmin.DeptVO {
	var depts []xadmin.DeptVO
	for _, id := range sortedKeys(s.data.depts) {
		d := s.data.depts[id]
		if contains(d.DeptName, c.Query("deptName")) && statusMatches(c, d.Status) {
			depts = append(depts, *d)
		}
	}
	sortDepts(depts)
	return depts
}

// deptRoots 过滤后父节点缺失的部门提升为根。
func deptRoots(depts []xadmin.DeptVO) []xadmin.DeptVO {
	present := make(map[int64]struct{}, len(depts))
	for _, d := range depts {
		present[d.ID] = struct{}{}
	}
	var out []xadmin.DeptVO
	for _, d := range depts {
		if _, ok := present[d.ParentID]; !ok {
			d.Children = buildDeptTree(depts, d.ID)
			out = append(out, d)
		}
	}
	return out
}

func (s *Server) deptTree(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	success(c, deptRoots(s.filteredDepts(c)))
}

func (s *Server) deptTreeSelect(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	success(c, deptSelect(deptRoots(s.filteredDepts(c))))
}

func (s *Server) getDept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data.depts[id]
	if !ok {
		notFound(c)
		return
	}
	success(c, d)
}

func (s *Server) createDept(c *gin.Context) {
	var req xadmin.DeptCreateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ancestors := "0"
	if req.ParentID > 0 {
		parent, ok := s.data.depts[req.ParentID]
		if !ok {
			failure(c, xenvelope.CodeDataNotFound, "上级部门不存在")
			return
		}
		ancestors = parent.Ancestors + "," + strconv.FormatInt(parent.ID, 10)
	}
	d := &xadmin.DeptVO{
		DeptName:  req.DeptName,
		ParentID:  req.ParentID,
		Ancestors: ancestors,
		OrderNum:  req.OrderNum,
		Leader:    req.Leader,
		Phone:     req.Phone,
		Email:     req.Email,
		Status:    intOr(req.Status, xadmin.StatusEnabled),
	}
	d.ID = s.data.nextID()
	s.audit(c, &d.BaseVO, true)
	s.data.depts[d.ID] = d
	success(c, d.ID)
}

func (s *Server) updateDept(c *gin.Context) {
	var req xadmin.DeptUpdateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.data.depts[req.ID]
	if !ok {
		notFound(c)
		return
	}
	if req.ParentID == d.ID {
		failure(c, xenvelope.CodeOperationFailed, "上级部门不能是自己")
		return
	}
	d.DeptName = req.DeptName
	d.ParentID = req.ParentID
	d.OrderNum = req.OrderNum
	d.Leader = req.Leader
	d.Phone = req.Phone
	d.Email = req.Email
	d.Status = intOr(req.Status, d.Status)
	s.audit(c, &d.BaseVO, false)
	success(c, nil)
}

func (s *Server) deleteDept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.depts[id]; !ok {
		notFound(c)
		return
	}
	for _, d := range s.data.depts {
		if d.ParentID == id {
			failure(c, xenvelope.CodeOperationFailed, "存在下级部门，不允许删除")
			return
		}
	}
	for _, u := range s.data.users {
		if u.deptID == id {
			failure(c, xenvelope.CodeOperationFailed, "部门存在用户，不允许删除")
			return
		}
	}
	delete(s.data.depts, id)
	success(c, nil)
}

// =============================================================================
// 菜单
// =============================================================================

// filteredMenus 调用方持有 s.mu。
func (s *Server) filteredMenus(c *gin.Context) []xadmin.MenuVO {
	var menus []xadmin.MenuVO
	for _, id := range sortedKeys(s.data.menus) {
		m := s.data.menus[id]
		if !contains(m.MenuName, c.Query("menuName")) || !statusMatches(c, m.Status) {
			continue
		}
		if raw := c.Query("visible"); raw != "" && raw != strconv.Itoa(m.Visible) {
			continue
		}
		menus = append(menus, *m)
	}
	sortMenus(menus)
	return menus
}

func menuRoots(menus []xadmin.MenuVO) []xadmin.MenuVO {
	present := make(map[int64]struct{}, len(menus))
	for _, m := range menus {
		present[m.ID] = struct{}{}
	}
	var out []xadmin.MenuVO
	for _, m := range menus {
		if _, ok := present[m.ParentID]; !ok {
			m.Children = buildMenuTree(menus, m.ID)
			out = append(out, m)
		}
	}
	return out
}

func (s *Server) menuTree(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	success(c, menuRoots(s.filteredMenus(c)))
}

func (s *Server) menuTreeSelect(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	success(c, menuSelect(menuRoots(s.filteredMenus(c))))
}

func (s *Server) getMenu(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data.menus[id]
	if !ok {
		notFound(c)
		return
	}
	success(c, m)
}

func applyMenu(m *xadmin.MenuVO, req *xadmin.MenuCreateRequest) {
	m.ParentID = req.ParentID
	m.MenuName = req.MenuName
	m.OrderNum = req.OrderNum
	m.Path = req.Path
	m.Component = req.Component
	m.QueryParam = req.QueryParam
	m.IsFrame = intOr(req.IsFrame, m.IsFrame)
	m.IsCache = intOr(req.IsCache, m.IsCache)
	m.MenuType = req.MenuType
	m.Visible = intOr(req.Visible, m.Visible)
	m.Perms = req.Perms
	m.Icon = req.Icon
	m.Status = intOr(req.Status, m.Status)
	m.Remark = req.Remark
}

func (s *Server) createMenu(c *gin.Context) {
	var req xadmin.MenuCreateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ParentID > 0 {
		if _, ok := s.data.menus[req.ParentID]; !ok {
			failure(c, xenvelope.CodeDataNotFound, "上级菜单不存在")
			return
		}
	}
	m := &xadmin.MenuVO{ID: s.data.nextID()}
	applyMenu(m, &req)
	s.data.menus[m.ID] = m
	success(c, m.ID)
}

func (s *Server) updateMenu(c *gin.Context) {
	var req xadmin.MenuUpdateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data.menus[req.ID]
	if !ok {
		notFound(c)
		return
	}
	if req.ParentID == m.ID {
		failure(c, xenvelope.CodeOperationFailed, "上级菜单不能是自己")
		return
	}
	applyMenu(m, &req.MenuCreateRequest)
	success(c, nil)
}

func (s *Server) deleteMenu(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.menus[id]; !ok {
		notFound(c)
		return
	}
	for _, m := range s.data.menus {
		if m.ParentID == id {
			failure(c, xenvelope.CodeOperationFailed, "存在子菜单，不允许删除")
			return
		}
	}
	delete(s.data.menus, id)
	success(c, nil)
}

// =============================================================================
// 字典
// =============================================================================

func (s *Server) listDictTypes(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []xadmin.DictTypeVO
	for _, id := range sortedKeys(s.data.dictTypes) {
		t := s.data.dictTypes[id]
		if contains(t.DictName, c.Query("dictName")) &&
			contains(t.DictType, c.Query("dictType")) &&
			statusMatches(c, t.Status) {
			records = append(records, *t)
		}
	}
	success(c, paginate(c, records))
}

func (s *Server) getDictType(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.dictTypes[id]
	if !ok {
		notFound(c)
		return
	}
	success(c, t)
}

// dictTypeTakenLocked 调用方持有 s.mu。
func (s *Server) dictTypeTakenLocked(dictType string, except int64) bool {
	for _, t := range s.data.dictTypes {
		if t.ID != except && t.DictType == dictType {
			return true
		}
	}
	return false
}

func (s *Server) createDictType(c *gin.Context) {
	var req xadmin.DictTypeCreateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dictTypeTakenLocked(req.DictType, 0) {
		failure(c, xenvelope.CodeDataAlreadyExists, "字典类型已存在")
		return
	}
	t := &xadmin.DictTypeVO{
		DictName: req.DictName,
		DictType: req.DictType,
		Status:   intOr(req.Status, xadmin.StatusEnabled),
		Remark:   req.Remark,
	}
	t.ID = s.data.nextID()
	s.audit(c, &t.BaseVO, true)
	s.data.dictTypes[t.ID] = t
	success(c, t.ID)
}

func (s *Server) updateDictType(c *gin.Context) {
	var req xadmin.DictTypeUpdateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data.dictTypes[req.ID]
	if !ok {
		notFound(c)
		return
	}
	if s.dictTypeTakenLocked(req.DictType, t.ID) {
		failure(c, xenvelope.CodeDataAlreadyExists, "字典类型已存在")
		return
	}
	// 类型标识变更时同步字典数据
	for _, d := range s.data.dictData {
		if d.DictType == t.DictType {
			d.DictType = req.DictType
		}
	}
	t.DictName = req.DictName
	t.DictType = req.DictType
	t.Status = intOr(req.Status, t.Status)
	t.Remark = req.Remark
	s.audit(c, &t.BaseVO, false)
	success(c, nil)
}

func (s *Server) deleteDictTypes(c *gin.Context) {
	ids, ok := pathIDs(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		t, ok := s.data.dictTypes[id]
		if !ok {
			continue
		}
		for _, d := range s.data.dictData {
			if d.DictType == t.DictType {
				failure(c, xenvelope.CodeOperationFailed, t.DictName+"已分配，不能删除")
				return
			}
		}
	}
	for _, id := range ids {
		delete(s.data.dictTypes, id)
	}
	success(c, nil)
}

// dictDataLocked 返回指定类型中满足 match 的字典数据，按排序号排列。调用方持有 s.mu。
func (s *Server) dictDataLocked(dictType string, match func(*xadmin.DictDataVO) bool) []xadmin.DictDataVO {
	out := []xadmin.DictDataVO{}
	for _, id := range sortedKeys(s.data.dictData) {
		d := s.data.dictData[id]
		if d.DictType == dictType && match(d) {
			out = append(out, *d)
		}
	}
	sortByOrder(out, func(d xadmin.DictDataVO) (int, int64) { return d.DictSort, d.ID })
	return out
}

func (s *Server) dictDataByType(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	success(c, s.dictDataLocked(c.Param("dictType"), func(d *xadmin.DictDataVO) bool {
		return d.Status == xadmin.StatusEnabled
	}))
}

func (s *Server) listDictData(c *gin.Context) {
	dictType := c.Query("dictType")
	if dictType == "" {
		failure(c, xenvelope.CodeParamMissing, "字典类型不能为空")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	success(c, s.dictDataLocked(dictType, func(d *xadmin.DictDataVO) bool {
		return contains(d.DictLabel, c.Query("dictLabel")) && statusMatches(c, d.Status)
	}))
}

func applyDictData(d *xadmin.DictDataVO, req *xadmin.DictDataCreateRequest) {
	d.DictType = req.DictType
	d.DictLabel = req.DictLabel
	d.DictValue = req.DictValue
	d.DictSort = req.DictSort
	d.CSSClass = req.CSSClass
	d.ListClass = req.ListClass
	d.IsDefault = req.IsDefault
	d.Status = intOr(req.Status, d.Status)
	d.Remark = req.Remark
}

func (s *Server) createDictData(c *gin.Context) {
	var req xadmin.DictDataCreateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dictTypeTakenLocked(req.DictType, 0) {
		failure(c, xenvelope.CodeDataNotFound, "字典类型不存在")
		return
	}
	d := &xadmin.DictDataVO{}
	applyDictData(d, &req)
	d.ID = s.data.nextID()
	s.audit(c, &d.BaseVO, true)
	s.data.dictData[d.ID] = d
	success(c, d.ID)
}

func (s *Server) updateDictData(c *gin.Context) {
	var req xadmin.DictDataUpdateRequest
	if !bind(c, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.data.dictData[req.ID]
	if !ok {
		notFound(c)
		return
	}
	applyDictData(d, &req.DictDataCreateRequest)
	s.audit(c, &d.BaseVO, false)
	success(c, nil)
}

func (s *Server) deleteDictData(c *gin.Context) {
	ids, ok := pathIDs(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.data.dictData, id)
	}
	success(c, nil)
}
