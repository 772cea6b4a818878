package xadmin

// =============================================================================
// 通用
// =============================================================================

// BaseVO 实体公共字段。
type BaseVO struct {
	ID         int64  `json:"id,omitempty"`
	CreateTime string `json:"createTime,omitempty"`
	CreateBy   int64  `json:"createBy,omitempty"`
	UpdateTime string `json:"updateTime,omitempty"`
	UpdateBy   int64  `json:"updateBy,omitempty"`
	Deleted    int    `json:"deleted,omitempty"`
	Version    int    `json:"version,omitempty"`
}

// PageQuery 分页与排序参数。
type PageQuery struct {
	PageNum        int    `json:"pageNum,omitempty"`
	PageSize       int    `json:"pageSize,omitempty"`
	OrderBy        string `json:"orderBy,omitempty"`
	OrderDirection string `json:"orderDirection,omitempty"`
	Asc            *bool  `json:"asc,omitempty"`
}

// Page 分页结果。
type Page[T any] struct {
	PageNum  int64 `json:"pageNum"`
	PageSize int64 `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int64 `json:"pages"`
	Records  []T   `json:"records"`
}

// TreeSelectVO 下拉树节点。
type TreeSelectVO struct {
	ID       int64          `json:"id"`
	Label    string         `json:"label"`
	Children []TreeSelectVO `json:"children,omitempty"`
}

// 状态取值。
const (
	StatusEnabled  = 0
	StatusDisabled = 1
)

// Status 返回状态指针，用于查询与可选字段。
func Status(v int) *int { return &v }

// =============================================================================
// 用户
// =============================================================================

// UserQuery 用户分页查询。
type UserQuery struct {
	PageQuery
	Username  string `json:"username,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Phone     string `json:"phone,omitempty"`
	DeptID    int64  `json:"deptId,omitempty"`
	Status    *int   `json:"status,omitempty"`
	BeginTime string `json:"beginTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// UserVO 用户。
type UserVO struct {
	BaseVO
	Username    string   `json:"username,omitempty"`
	Nickname    string   `json:"nickname,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	Sex         int      `json:"sex,omitempty"`
	DeptName    string   `json:"deptName,omitempty"`
	Status      int      `json:"status"`
	LoginIP     string   `json:"loginIp,omitempty"`
	LoginDate   string   `json:"loginDate,omitempty"`
	Remark      string   `json:"remark,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// UserCreateRequest 新增用户。
type UserCreateRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	Nickname string  `json:"nickname" validate:"required"`
	Phone    string  `json:"phone,omitempty"`
	Email    string  `json:"email,omitempty"`
	Sex      *int    `json:"sex,omitempty"`
	DeptID   int64   `json:"deptId,omitempty"`
	Status   *int    `json:"status,omitempty"`
	RoleIDs  []int64 `json:"roleIds,omitempty"`
	Remark   string  `json:"remark,omitempty"`
}

// UserUpdateRequest 修改用户。
type UserUpdateRequest struct {
	ID       int64   `json:"id" validate:"required"`
	Nickname string  `json:"nickname" validate:"required"`
	Phone    string  `json:"phone,omitempty"`
	Email    string  `json:"email,omitempty"`
	Sex      *int    `json:"sex,omitempty"`
	DeptID   int64   `json:"deptId,omitempty"`
	Status   *int    `json:"status,omitempty"`
	RoleIDs  []int64 `json:"roleIds,omitempty"`
	Remark   string  `json:"remark,omitempty"`
}

// =============================================================================
// 角色
// =============================================================================

// RoleQuery 角色分页查询。
type RoleQuery struct {
	PageQuery
	RoleName  string `json:"roleName,omitempty"`
	RoleKey   string `json:"roleKey,omitempty"`
	Status    *int   `json:"status,omitempty"`
	BeginTime string `json:"beginTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// RoleVO 角色。
type RoleVO struct {
	BaseVO
	RoleName  string `json:"roleName,omitempty"`
	RoleKey   string `json:"roleKey,omitempty"`
	OrderNum  int    `json:"orderNum,omitempty"`
	DataScope int    `json:"dataScope,omitempty"`
	Status    int    `json:"status"`
	Remark    string `json:"remark,omitempty"`
}

// RoleUpdateRequest 修改角色及其菜单/部门授权。
type RoleUpdateRequest struct {
	ID        int64   `json:"id" validate:"required"`
	RoleName  string  `json:"roleName" validate:"required"`
	RoleKey   string  `json:"roleKey" validate:"required"`
	OrderNum  int     `json:"orderNum,omitempty"`
	DataScope int     `json:"dataScope,omitempty"`
	Status    *int    `json:"status,omitempty"`
	Remark    string  `json:"remark,omitempty"`
	MenuIDs   []int64 `json:"menuIds,omitempty"`
	DeptIDs   []int64 `json:"deptIds,omitempty"`
}

// =============================================================================
// 部门
// =============================================================================

// DeptQuery 部门查询。
type DeptQuery struct {
	DeptName string `json:"deptName,omitempty"`
	Status   *int   `json:"status,omitempty"`
}

// DeptVO 部门树节点。
type DeptVO struct {
	BaseVO
	DeptName  string   `json:"deptName,omitempty"`
	ParentID  int64    `json:"parentId"`
	Ancestors string   `json:"ancestors,omitempty"`
	OrderNum  int      `json:"orderNum,omitempty"`
	Leader    string   `json:"leader,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Email     string   `json:"email,omitempty"`
	Status    int      `json:"status"`
	Children  []DeptVO `json:"children,omitempty"`
}

// DeptCreateRequest 新增部门。
type DeptCreateRequest struct {
	ParentID int64  `json:"parentId,omitempty"`
	DeptName string `json:"deptName" validate:"required"`
	OrderNum int    `json:"orderNum,omitempty"`
	Leader   string `json:"leader,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Status   *int   `json:"status,omitempty"`
}

// DeptUpdateRequest 修改部门。
type DeptUpdateRequest struct {
	ID int64 `json:"id" validate:"required"`
	DeptCreateRequest
}

// =============================================================================
// 菜单
// =============================================================================

// 菜单类型。
const (
	MenuTypeDirectory = "M"
	MenuTypeMenu      = "C"
	MenuTypeButton    = "F"
)

// MenuQuery 菜单查询。
type MenuQuery struct {
	MenuName string `json:"menuName,omitempty"`
	Status   *int   `json:"status,omitempty"`
	Visible  *int   `json:"visible,omitempty"`
}

// MenuVO 菜单树节点。
type MenuVO struct {
	ID         int64    `json:"id,omitempty"`
	ParentID   int64    `json:"parentId"`
	MenuName   string   `json:"menuName,omitempty"`
	OrderNum   int      `json:"orderNum,omitempty"`
	Path       string   `json:"path,omitempty"`
	Component  string   `json:"component,omitempty"`
	QueryParam string   `json:"queryParam,omitempty"`
	IsFrame    int      `json:"isFrame,omitempty"`
	IsCache    int      `json:"isCache,omitempty"`
	MenuType   string   `json:"menuType,omitempty"`
	Visible    int      `json:"visible"`
	Perms      string   `json:"perms,omitempty"`
	Icon       string   `json:"icon,omitempty"`
	Status     int      `json:"status"`
	Remark     string   `json:"remark,omitempty"`
	Children   []MenuVO `json:"children,omitempty"`
}

// MenuCreateRequest 新增菜单。
type MenuCreateRequest struct {
	ParentID   int64  `json:"parentId,omitempty"`
	MenuName   string `json:"menuName" validate:"required,max=50"`
	OrderNum   int    `json:"orderNum,omitempty"`
	Path       string `json:"path,omitempty" validate:"max=200"`
	Component  string `json:"component,omitempty" validate:"max=200"`
	QueryParam string `json:"queryParam,omitempty"`
	IsFrame    *int   `json:"isFrame,omitempty"`
	IsCache    *int   `json:"isCache,omitempty"`
	MenuType   string `json:"menuType" validate:"required"`
	Visible    *int   `json:"visible,omitempty"`
	Perms      string `json:"perms,omitempty" validate:"max=100"`
	Icon       string `json:"icon,omitempty"`
	Status     *int   `json:"status,omitempty"`
	Remark     string `json:"remark,omitempty"`
}

// MenuUpdateRequest 修改菜单。
type MenuUpdateRequest struct {
	ID int64 `json:"id" validate:"required"`
	MenuCreateRequest
}

// =============================================================================
// 字典
// =============================================================================

// DictTypeQuery 字典类型分页查询。
type DictTypeQuery struct {
	PageQuery
	DictName string `json:"dictName,omitempty"`
	DictType string `json:"dictType,omitempty"`
	Status   *int   `json:"status,omitempty"`
}

// DictTypeVO 字典类型。
type DictTypeVO struct {
	BaseVO
	DictName string `json:"dictName,omitempty"`
	DictType string `json:"dictType,omitempty"`
	Status   int    `json:"status"`
	Remark   string `json:"remark,omitempty"`
}

// DictTypeCreateRequest 新增字典类型。
type DictTypeCreateRequest struct {
	DictName string `json:"dictName" validate:"required"`
	DictType string `json:"dictType" validate:"required"`
	Status   *int   `json:"status,omitempty"`
	Remark   string `json:"remark,omitempty"`
}

// DictTypeUpdateRequest 修改字典类型。
type DictTypeUpdateRequest struct {
	ID int64 `json:"id" validate:"required"`
	DictTypeCreateRequest
}

// DictDataQuery 字典数据查询，DictType 必填。
type DictDataQuery struct {
	PageQuery
	DictType  string `json:"dictType,omitempty"`
	DictLabel string `json:"dictLabel,omitempty"`
	Status    *int   `json:"status,omitempty"`
}

// DictDataVO 字典数据。
type DictDataVO struct {
	BaseVO
	DictType  string `json:"dictType,omitempty"`
	DictLabel string `json:"dictLabel,omitempty"`
	DictValue string `json:"dictValue,omitempty"`
	DictSort  int    `json:"dictSort,omitempty"`
	CSSClass  string `json:"cssClass,omitempty"`
	ListClass string `json:"listClass,omitempty"`
	IsDefault string `json:"isDefault,omitempty"`
	Status    int    `json:"status"`
	Remark    string `json:"remark,omitempty"`
}

// DictDataCreateRequest 新增字典数据。
type DictDataCreateRequest struct {
	DictType  string `json:"dictType" validate:"required"`
	DictLabel string `json:"dictLabel" validate:"required"`
	DictValue string `json:"dictValue" validate:"required"`
	DictSort  int    `json:"dictSort,omitempty"`
	CSSClass  string `json:"cssClass,omitempty"`
	ListClass string `json:"listClass,omitempty"`
	IsDefault string `json:"isDefault,omitempty"`
	Status    *int   `json:"status,omitempty"`
	Remark    string `json:"remark,omitempty"`
}

// DictDataUpdateRequest 修改字典数据。
type DictDataUpdateRequest struct {
	ID int64 `json:"id" validate:"required"`
	DictDataCreateRequest
}
