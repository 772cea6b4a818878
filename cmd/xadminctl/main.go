// xadminctl 是后台管理服务的命令行客户端。
//
// 用法:
//
//	xadminctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config      配置文件 (yaml/json)，支持热更新
//	-b, --base-url    后端地址
//	    --insecure    允许 http:// 地址
//	    --token-file  令牌文件 (默认: $XDG_CONFIG_HOME/xadmin/quantum-auth.json)
//	    --key-file    令牌加密密钥文件，设置后令牌文件加密保存
//	-t, --timeout     单次请求超时
//	    --log-level   日志级别 (debug/info/warn/error/off)
//
// 命令:
//
//	login          登录并保存令牌
//	logout         登出并清除本地令牌
//	whoami         当前用户信息
//	status         本地会话状态（退出码 1 表示未登录）
//	users list     用户列表
//	roles list     角色列表
//	depts tree     部门树
//	menus tree     菜单树
//	dicts types    字典类型列表
//	dicts data     字典数据
//	keepalive      定期调用 /auth/info 保持会话
//	mock-server    启动内存版后台服务
//	shell          交互模式
//
// 退出码:
//
//	0: 成功
//	1: 命令失败或未登录
//	2: 参数错误
//	130: 被中断
//
// 启动时先加载当前目录的 .env（或 XADMIN_ENV_FILE 指定的文件），
// 再由 XADMIN_ 前缀的环境变量覆盖配置文件。
//
// 示例:
//
//	xadminctl mock-server --addr 127.0.0.1:8080
//	xadminctl -b http://127.0.0.1:8080 --insecure login -u admin -p admin123 --captcha 1234
//	xadminctl -b http://127.0.0.1:8080 --insecure users list --size 20
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

// 版本信息，可通过 -ldflags 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// defaultTimeout 默认请求超时时间。
const defaultTimeout = 15 * time.Second

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xadminctl",
		Usage:   "后台管理服务命令行客户端",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (yaml/json)",
				Sources: cli.EnvVars("XADMIN_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Aliases: []string{"b"},
				Usage:   "后端地址",
				Sources: cli.EnvVars("XADMIN_BASE_URL"),
			},
			&cli.BoolFlag{
				Name:    "insecure",
				Usage:   "允许 http:// 地址（仅限开发环境）",
				Sources: cli.EnvVars("XADMIN_INSECURE"),
			},
			&cli.StringFlag{
				Name:    "token-file",
				Usage:   "令牌文件路径",
				Sources: cli.EnvVars("XADMIN_TOKEN_FILE"),
			},
			&cli.StringFlag{
				Name:    "key-file",
				Usage:   "令牌加密密钥文件，不存在时自动生成",
				Sources: cli.EnvVars("XADMIN_KEY_FILE"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单次请求超时",
				Value:   defaultTimeout,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "日志级别 (debug/info/warn/error/off)",
				Sources: cli.EnvVars("XADMIN_LOG_LEVEL"),
			},
		},
		Commands: createCommands(),
		// 退出码由 run 统一映射，禁止框架直接 os.Exit。
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				_, _ = fmt.Fprintln(errWriter(cmd), err)
			}
		},
	}
}

// run 执行命令并返回退出码。
func run(args []string) int {
	if err := loadDotEnv(os.Getenv("XADMIN_ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	return exitCode(createApp().Run(ctx, args), os.Stderr)
}

// =============================================================================
// 退出码
// =============================================================================

// exitError 命令已完成输出，只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		_, _ = fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if isCLIUsageError(err) {
		_, _ = fmt.Fprintf(stderr, "参数错误: %v\n", err)
		return 2
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	_, _ = fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

// isCLIUsageError 识别 urfave/cli 的 flag 与命令解析错误。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"flag provided but not defined",
		"invalid value",
		"Required flag",
		"Required flags",
		"No help topic for",
		"flag needs an argument",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
