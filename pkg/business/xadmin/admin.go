package xadmin

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/omeyang/xadmin/pkg/session/xclient"
)

// Admin 后台管理接口集合。
type Admin struct {
	Auth  *AuthAPI
	Users *UserAPI
	Roles *RoleAPI
	Depts *DeptAPI
	Menus *MenuAPI
	Dicts *DictAPI

	client      *xclient.Client
	state       *UserState
	logger      *slog.Logger
	unsubscribe func()
}

// Option 配置 Admin。
type Option func(*options)

type options struct {
	logger *slog.Logger
	state  *UserState
}

// WithLogger 设置日志记录器，nil 时使用 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithUserState 共享外部的用户状态。
func WithUserState(s *UserState) Option {
	return func(o *options) {
		if s != nil {
			o.state = s
		}
	}
}

// New 基于客户端创建接口集合。会话登出时用户状态自动清空。
func New(client *xclient.Client, opts ...Option) (*Admin, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.state == nil {
		o.state = NewUserState()
	}

	a := &Admin{client: client, state: o.state, logger: o.logger}
	base := api{client: client, logger: o.logger}
	a.Auth = &AuthAPI{api: base, state: o.state}
	a.Users = &UserAPI{api: base}
	a.Roles = &RoleAPI{api: base}
	a.Depts = &DeptAPI{api: base}
	a.Menus = &MenuAPI{api: base}
	a.Dicts = &DictAPI{api: base}

	a.unsubscribe = client.Session().OnLogout(func(ctx context.Context, reason xclient.LogoutReason) {
		o.state.Clear()
		o.logger.DebugContext(ctx, "xadmin: user state cleared", slog.String("reason", string(reason)))
	})
	return a, nil
}

// State 返回用户状态。
func (a *Admin) State() *UserState { return a.state }

// Client 返回底层客户端。
func (a *Admin) Client() *xclient.Client { return a.client }

// Close 取消登出订阅。不关闭底层客户端。
func (a *Admin) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// =============================================================================
// 请求辅助
// =============================================================================

// api 各接口组共享的依赖。
type api struct {
	client *xclient.Client
	logger *slog.Logger
}

func (a api) get(ctx context.Context, path string, query any, out any, opts ...xclient.CallOption) error {
	return a.client.Get(ctx, path, queryValues(query), out, opts...)
}

// create 校验后 POST，返回新建记录 ID。
func (a api) create(ctx context.Context, op, path string, payload any) (int64, error) {
	if err := check(op, payload); err != nil {
		return 0, err
	}
	var id int64
	if err := a.client.Post(ctx, path, payload, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// update 校验后 PUT。
func (a api) update(ctx context.Context, op, path string, payload any) error {
	if err := check(op, payload); err != nil {
		return err
	}
	return a.client.Put(ctx, path, payload, nil)
}

// remove DELETE {path}/{ids}，ids 以逗号分隔。
func (a api) remove(ctx context.Context, path string, ids ...int64) error {
	joined, err := joinIDs(ids)
	if err != nil {
		return err
	}
	return a.client.Delete(ctx, path+"/"+joined, nil, nil)
}

func queryValues(query any) url.Values {
	if query == nil {
		return nil
	}
	if v, ok := query.(url.Values); ok {
		return v
	}
	values := xclient.NewParams().Struct(query).Values()
	if len(values) == 0 {
		return nil
	}
	return values
}

// joinIDs 过滤非正数 ID 后以逗号拼接。
func joinIDs(ids []int64) (string, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyIDs
	}
	return strings.Join(parts, ","), nil
}

func idPath(prefix string, id int64) string {
	return fmt.Sprintf("%s/%d", prefix, id)
}
