package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xadmin/internal/mockadmin"
	"github.com/omeyang/xadmin/pkg/observability/xlog"
)

func createMockServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "mock-server",
		Usage: "启动内存版后台服务（演示与联调）",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "监听地址", Value: "127.0.0.1:8080"},
			&cli.StringFlag{Name: "captcha-code", Usage: "验证码答案", Value: mockadmin.DefaultCaptchaCode},
			&cli.DurationFlag{Name: "access-ttl", Usage: "access token 有效期", Value: mockadmin.DefaultAccessTTL},
			&cli.DurationFlag{Name: "refresh-ttl", Usage: "refresh token 有效期", Value: mockadmin.DefaultRefreshTTL},
			&cli.BoolFlag{Name: "snake-tokens", Usage: "令牌字段使用 access_token/refresh_token"},
			&cli.BoolFlag{Name: "nested-profile", Usage: "/auth/info 返回 profile 子对象"},
			&cli.BoolFlag{Name: "rotate-refresh", Usage: "刷新时轮换 refresh token"},
			&cli.IntFlag{Name: "unauthorized-status", Usage: "令牌无效时的 HTTP 状态码（默认 200）"},
		},
		Action: cmdMockServer,
	}
}

func cmdMockServer(ctx context.Context, cmd *cli.Command) error {
	logger, _, cleanup, err := xlog.New().
		SetOutput(errWriter(cmd)).
		SetLevelString(cmd.String("log-level")).
		With(slog.String("app", "mockadmin")).
		Build()
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	srv := mockadmin.New(mockadmin.Config{
		AccessTTL:              cmd.Duration("access-ttl"),
		RefreshTTL:             cmd.Duration("refresh-ttl"),
		CaptchaCode:            cmd.String("captcha-code"),
		SnakeCaseTokens:        cmd.Bool("snake-tokens"),
		NestedProfile:          cmd.Bool("nested-profile"),
		RotateRefresh:          cmd.Bool("rotate-refresh"),
		UnauthorizedHTTPStatus: cmd.Int("unauthorized-status"),
	}, mockadmin.WithLogger(logger))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cmd.String("addr"))
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", cmd.String("addr"), err)
	}
	_, _ = fmt.Fprintf(outWriter(cmd), "mock-server 监听 http://%s (账号 %s/%s, %s/%s, 验证码 %s)\n",
		ln.Addr(), mockadmin.AdminUsername, mockadmin.AdminPassword,
		mockadmin.EditorUsername, mockadmin.EditorPassword, cmd.String("captcha-code"))
	return srv.Serve(ctx, ln)
}
