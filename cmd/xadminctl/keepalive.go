package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xadmin/pkg/config/xconf"
	"github.com/omeyang/xadmin/pkg/observability/xlog"
	"github.com/omeyang/xadmin/pkg/session/xclient"
)

// errKeepaliveDone 达到 --count 次数后正常结束。
var errKeepaliveDone = errors.New("keepalive done")

func createKeepaliveCommand() *cli.Command {
	return &cli.Command{
		Name:  "keepalive",
		Usage: "定期调用 /auth/info 保持会话，配置文件变更时热更新健康阈值",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "调用间隔（默认取 keepalive.interval）"},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "调用次数，0 表示一直运行"},
		},
		Action: withRuntime(cmdKeepalive),
	}
}

func cmdKeepalive(ctx context.Context, cmd *cli.Command, rt *runtime) error {
	if err := requireAuth(cmd, rt); err != nil {
		return err
	}
	interval := rt.cfg.Keepalive.Interval
	if cmd.IsSet("interval") {
		interval = cmd.Duration("interval")
	}
	if interval <= 0 {
		return usagef("--interval 必须为正数")
	}

	ended := make(chan xclient.LogoutReason, 1)
	unsubscribe := rt.client.Session().OnLogout(func(_ context.Context, reason xclient.LogoutReason) {
		select {
		case ended <- reason:
		default:
		}
	})
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.pingLoop(gctx, interval, cmd.Int("count"), ended)
	})
	if rt.src != nil && rt.src.Path() != "" {
		g.Go(func() error {
			return xconf.Watch(gctx, rt.src, rt.applyReload)
		})
	}

	err := g.Wait()
	switch {
	case errors.Is(err, errKeepaliveDone):
		return nil
	case err == nil && ctx.Err() != nil:
		return nil
	}
	return err
}

// pingLoop 按间隔调用 /auth/info。会话被登出时以退出码 1 结束。
func (rt *runtime) pingLoop(ctx context.Context, interval time.Duration, count int, ended <-chan xclient.LogoutReason) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		if _, err := rt.admin.Auth.Info(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			rt.logger.WarnContext(ctx, "xadminctl: keepalive call failed", slog.String("error", err.Error()))
		} else {
			_, _ = fmt.Fprintf(rt.out, "%s 会话有效\n", time.Now().Format(time.TimeOnly))
		}

		select {
		case reason := <-ended:
			_, _ = fmt.Fprintf(rt.out, "会话已结束: %s\n", reason)
			return &exitError{code: 1}
		default:
		}
		if count > 0 && n >= count {
			return errKeepaliveDone
		}

		select {
		case <-ctx.Done():
			return nil
		case reason := <-ended:
			_, _ = fmt.Fprintf(rt.out, "会话已结束: %s\n", reason)
			return &exitError{code: 1}
		case <-ticker.C:
		}
	}
}

// applyReload 配置文件变更后更新健康阈值与日志级别。
func (rt *runtime) applyReload(src *xconf.Source, err error) {
	if err != nil {
		rt.logger.Warn("xadminctl: config reload failed, keeping previous", slog.String("error", err.Error()))
		return
	}
	cfg, err := decodeConfig(src)
	if err != nil {
		rt.logger.Warn("xadminctl: decode reloaded config", slog.String("error", err.Error()))
		return
	}
	if err := rt.client.Session().Health().UpdateConfig(cfg.Client.Health); err != nil {
		rt.logger.Warn("xadminctl: reject health config", slog.String("error", err.Error()))
		return
	}
	if cfg.Log.Level != "" {
		if level, err := xlog.ParseLevel(cfg.Log.Level); err == nil {
			rt.level.Set(level)
		}
	}
	rt.logger.Info("xadminctl: config reloaded",
		slog.Int("max_consecutive_failures", rt.client.Session().Health().Config().MaxConsecutiveFailures))
}
