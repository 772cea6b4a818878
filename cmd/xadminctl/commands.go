package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xadmin/pkg/business/xadmin"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createLoginCommand(),
		createLogoutCommand(),
		createWhoamiCommand(),
		createStatusCommand(),
		createUsersCommand(),
		createRolesCommand(),
		createDeptsCommand(),
		createMenusCommand(),
		createDictsCommand(),
		createKeepaliveCommand(),
		createMockServerCommand(),
		createShellCommand(),
	}
}

// runtimeAction 需要已构建客户端的命令。
type runtimeAction func(ctx context.Context, cmd *cli.Command, rt *runtime) error

func withRuntime(fn runtimeAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		rt, err := newRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, cmd, rt)
	}
}

// requireAuth 未登录时提示并以退出码 1 结束。
func requireAuth(cmd *cli.Command, rt *runtime) error {
	if rt.client.Session().IsAuthed() {
		return nil
	}
	_, _ = fmt.Fprintln(errWriter(cmd), "未登录，请先执行 xadminctl login")
	return &exitError{code: 1}
}

// =============================================================================
// 认证
// =============================================================================

func createLoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "登录并保存令牌",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "用户名", Sources: cli.EnvVars("XADMIN_USERNAME")},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "密码", Sources: cli.EnvVars("XADMIN_PASSWORD")},
			&cli.StringFlag{Name: "captcha", Usage: "验证码，为空时交互输入", Sources: cli.EnvVars("XADMIN_CAPTCHA")},
			&cli.BoolFlag{Name: "remember", Usage: "记住登录"},
		},
		Action: withRuntime(cmdLogin),
	}
}

func cmdLogin(ctx context.Context, cmd *cli.Command, rt *runtime) error {
	in := bufio.NewReader(inReader(cmd))
	username, err := flagOrPrompt(cmd, in, "username", "用户名")
	if err != nil {
		return err
	}
	password, err := flagOrPrompt(cmd, in, "password", "密码")
	if err != nil {
		return err
	}

	captcha, err := rt.admin.Auth.Captcha(ctx)
	if err != nil {
		return err
	}
	code, err := flagOrPrompt(cmd, in, "captcha", fmt.Sprintf("验证码（%d 位）", captcha.Length))
	if err != nil {
		return err
	}

	res, err := rt.admin.Auth.Login(ctx, xadmin.LoginRequest{
		Username:    username,
		Password:    password,
		CaptchaKey:  captcha.Key,
		CaptchaCode: code,
		RememberMe:  cmd.Bool("remember"),
	})
	if err != nil {
		return err
	}

	name := res.Nickname
	if name == "" {
		name = username
	}
	_, _ = fmt.Fprintf(rt.out, "登录成功: %s\n", name)
	if res.ExpireTime != "" {
		_, _ = fmt.Fprintf(rt.out, "过期时间: %s\n", res.ExpireTime)
	}
	return nil
}

func createLogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "登出并清除本地令牌",
		Action: withRuntime(func(ctx context.Context, _ *cli.Command, rt *runtime) error {
			rt.admin.Auth.Logout(ctx)
			_, _ = fmt.Fprintln(rt.out, "已登出")
			return nil
		}),
	}
}

func createWhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "当前用户信息",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "以 JSON 输出"},
		},
		Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *runtime) error {
			if err := requireAuth(cmd, rt); err != nil {
				return err
			}
			info, err := rt.admin.Auth.Info(ctx)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return writeJSON(rt.out, info)
			}
			t := newTable(rt.out, "字段", "值")
			t.row("用户名", info.Username)
			t.row("昵称", info.Nickname)
			t.row("部门", info.DeptName)
			t.row("邮箱", info.Email)
			t.row("角色", strings.Join(info.Roles, ","))
			t.row("权限数", strconv.Itoa(len(info.Permissions)))
			return t.flush()
		}),
	}
}

func createStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "本地会话状态",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "probe", Usage: "调用 /auth/info 确认服务端会话"},
		},
		Action: withRuntime(cmdStatus),
	}
}

func cmdStatus(ctx context.Context, cmd *cli.Command, rt *runtime) error {
	w := rt.out
	_, _ = fmt.Fprintf(w, "后端: %s\n", rt.cfg.Client.BaseURL)
	_, _ = fmt.Fprintf(w, "令牌: %s\n", rt.tokenAt)

	session := rt.client.Session()
	if !session.IsAuthed() {
		_, _ = fmt.Fprintln(w, "状态: 未登录")
		return &exitError{code: 1}
	}
	_, _ = fmt.Fprintln(w, "状态: 已登录")

	pair := session.Store().Pair()
	if claims, err := xtoken.Claims(pair.AccessToken); err == nil {
		if claims.Subject != "" {
			_, _ = fmt.Fprintf(w, "主体: %s\n", claims.Subject)
		}
		if !claims.ExpiresAt.IsZero() {
			state := "有效"
			if claims.Expired(time.Now()) {
				state = "已过期，下次请求自动刷新"
			}
			_, _ = fmt.Fprintf(w, "访问令牌过期: %s (%s)\n", claims.ExpiresAt.Local().Format(time.DateTime), state)
		}
	}
	_, _ = fmt.Fprintf(w, "刷新令牌: %t\n", pair.RefreshToken != "")

	hc := session.Health().Config()
	win := session.Health().Window()
	_, _ = fmt.Fprintf(w, "网络失败: %d/%d\n", win.ConsecutiveFailures, hc.MaxConsecutiveFailures)

	if cmd.Bool("probe") {
		if _, err := rt.admin.Auth.Info(ctx); err != nil {
			_, _ = fmt.Fprintf(w, "服务端确认: 失败 (%v)\n", err)
			return &exitError{code: 1}
		}
		_, _ = fmt.Fprintln(w, "服务端确认: 成功")
	}
	return nil
}

// =============================================================================
// 系统管理
// =============================================================================

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Usage: "页码", Value: 1},
		&cli.IntFlag{Name: "size", Usage: "每页条数", Value: 10},
		&cli.IntFlag{Name: "status", Usage: "状态过滤 (0 正常, 1 停用, -1 全部)", Value: -1},
	}
}

func pageQuery(cmd *cli.Command) xadmin.PageQuery {
	return xadmin.PageQuery{PageNum: cmd.Int("page"), PageSize: cmd.Int("size")}
}

func statusFilter(cmd *cli.Command) *int {
	if s := cmd.Int("status"); s >= 0 {
		return xadmin.Status(s)
	}
	return nil
}

func createUsersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "用户管理",
		Commands: []*cli.Command{{
			Name:  "list",
			Usage: "用户列表",
			Flags: append(pageFlags(),
				&cli.StringFlag{Name: "username", Usage: "用户名过滤"},
			),
			Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *runtime) error {
				if err := requireAuth(cmd, rt); err != nil {
					return err
				}
				page, err := rt.admin.Users.List(ctx, xadmin.UserQuery{
					PageQuery: pageQuery(cmd),
					Username:  cmd.String("username"),
					Status:    statusFilter(cmd),
				})
				if err != nil {
					return err
				}
				t := newTable(rt.out, "ID", "用户名", "昵称", "部门", "状态")
				for _, u := range page.Records {
					t.row(strconv.FormatInt(u.ID, 10), u.Username, u.Nickname, u.DeptName, statusText(u.Status))
				}
				if err := t.flush(); err != nil {
					return err
				}
				return printPageFooter(rt.out, page.PageNum, page.Pages, page.Total)
			}),
		}},
	}
}

func createRolesCommand() *cli.Command {
	return &cli.Command{
		Name:  "roles",
		Usage: "角色管理",
		Commands: []*cli.Command{{
			Name:  "list",
			Usage: "角色列表",
			Flags: pageFlags(),
			Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *runtime) error {
				if err := requireAuth(cmd, rt); err != nil {
					return err
				}
				page, err := rt.admin.Roles.List(ctx, xadmin.RoleQuery{PageQuery: pageQuery(cmd), Status: statusFilter(cmd)})
				if err != nil {
					return err
				}
				t := newTable(rt.out, "ID", "名称", "标识", "排序", "状态")
				for _, r := range page.Records {
					t.row(strconv.FormatInt(r.ID, 10), r.RoleName, r.RoleKey, strconv.Itoa(r.OrderNum), statusText(r.Status))
				}
				if err := t.flush(); err != nil {
					return err
				}
				return printPageFooter(rt.out, page.PageNum, page.Pages, page.Total)
			}),
		}},
	}
}

func createDeptsCommand() *cli.Command {
	return &cli.Command{
		Name:  "depts",
		Usage: "部门管理",
		Commands: []*cli.Command{{
			Name:  "tree",
			Usage: "部门树",
			Flags: []cli.Flag{&cli.StringFlag{Name: "name", Usage: "部门名称过滤"}},
			Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *runtime) error {
				if err := requireAuth(cmd, rt); err != nil {
					return err
				}
				tree, err := rt.admin.Depts.Tree(ctx, xadmin.DeptQuery{DeptName: cmd.String("name")})
				if err != nil {
					return err
				}
				printDeptTree(rt.out, tree, 0)
				return nil
			}),
		}},
	}
}

func createMenusCommand() *cli.Command {
	return &cli.Command{
		Name:  "menus",
		Usage: "菜单管理",
		Commands: []*cli.Command{{
			Name:  "tree",
			Usage: "菜单树",
			Flags: []cli.Flag{&cli.StringFlag{Name: "name", Usage: "菜单名称过滤"}},
			Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *runtime) error {
				if err := requireAuth(cmd, rt); err != nil {
					return err
				}
				tree, err := rt.admin.Menus.Tree(ctx, xadmin.MenuQuery{MenuName: cmd.String("name")})
				if err != nil {
					return err
				}
				printMenuTree(rt.out, tree, 0)
				return nil
			}),
		}},
	}
}

func createDictsCommand() *cli.Command {
	return &cli.Command{
		Name:  "dicts",
		Usage: "字典管理",
		Commands: []*cli.Command{
			{
				Name:  "types",
				Usage: "字典类型列表",
				Flags: pageFlags(),
				Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *runtime) error {
					if err := requireAuth(cmd, rt); err != nil {
						return err
					}
					page, err := rt.admin.Dicts.Types(ctx, xadmin.DictTypeQuery{PageQuery: pageQuery(cmd), Status: statusFilter(cmd)})
					if err != nil {
						return err
					}
					t := newTable(rt.out, "ID", "名称", "类型", "状态")
					for _, d := range page.Records {
						t.row(strconv.FormatInt(d.ID, 10), d.DictName, d.DictType, statusText(d.Status))
					}
					if err := t.flush(); err != nil {
						return err
					}
					return printPageFooter(rt.out, page.PageNum, page.Pages, page.Total)
				}),
			},
			{
				Name:      "data",
				Usage:     "字典数据（仅启用项）",
				ArgsUsage: "<dictType>",
				Action: withRuntime(func(ctx context.Context, cmd *cli.Command, rt *runtime) error {
					dictType := cmd.Args().First()
					if dictType == "" {
						return usagef("dicts data 需要指定字典类型")
					}
					if err := requireAuth(cmd, rt); err != nil {
						return err
					}
					items, err := rt.admin.Dicts.DataByType(ctx, dictType)
					if err != nil {
						return err
					}
					t := newTable(rt.out, "标签", "值", "排序", "默认")
					for _, d := range items {
						t.row(d.DictLabel, d.DictValue, strconv.Itoa(d.DictSort), d.IsDefault)
					}
					return t.flush()
				}),
			},
		},
	}
}

func printPageFooter(w io.Writer, pageNum, pages, total int64) error {
	_, err := fmt.Fprintf(w, "第 %d/%d 页，共 %d 条\n", pageNum, pages, total)
	return err
}

// =============================================================================
// 输入
// =============================================================================

// errEmptyInput 交互输入为空。
var errEmptyInput = errors.New("输入为空")

// flagOrPrompt flag 未设置时从输入读取一行。
func flagOrPrompt(cmd *cli.Command, in *bufio.Reader, flag, label string) (string, error) {
	if v := cmd.String(flag); v != "" {
		return v, nil
	}
	_, _ = fmt.Fprintf(errWriter(cmd), "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", usagef("%s: %v", label, errEmptyInput)
	}
	return line, nil
}

func inReader(cmd *cli.Command) io.Reader {
	if root := cmd.Root(); root != nil && root.Reader != nil {
		return root.Reader
	}
	return os.Stdin
}
