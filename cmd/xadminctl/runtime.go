package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xadmin/pkg/business/xadmin"
	"github.com/omeyang/xadmin/pkg/config/xconf"
	"github.com/omeyang/xadmin/pkg/observability/xlog"
	"github.com/omeyang/xadmin/pkg/observability/xmetrics"
	"github.com/omeyang/xadmin/pkg/session/xclient"
	"github.com/omeyang/xadmin/pkg/session/xnotify"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// runtime 一次命令执行所需的全部组件。
type runtime struct {
	cfg     *appConfig
	src     *xconf.Source
	logger  *slog.Logger
	level   *slog.LevelVar
	client  *xclient.Client
	admin   *xadmin.Admin
	out     io.Writer
	tokenAt string

	closers []func() error
}

// newRuntime 加载配置并构建客户端，令牌已从后端加载。
func newRuntime(ctx context.Context, cmd *cli.Command) (rt *runtime, err error) {
	cfg, src, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	rt = &runtime{cfg: cfg, src: src, out: outWriter(cmd)}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if err := rt.buildLogger(errWriter(cmd)); err != nil {
		return nil, err
	}
	backend, err := rt.buildBackend()
	if err != nil {
		return nil, err
	}

	observer, err := xmetrics.NewOTelObserver(xmetrics.WithInstrumentationName("xadminctl"))
	if err != nil {
		return nil, err
	}

	stderr := errWriter(cmd)
	rt.client, err = xclient.New(&cfg.Client,
		xclient.WithTokenBackend(backend),
		xclient.WithLogger(rt.logger),
		xclient.WithObserver(observer),
		xclient.WithNavigator(xnotify.NewMemoryNavigator("/")),
		xclient.WithErrorStore(xnotify.NewErrorStore(0, 0)),
		xclient.WithNotifier(xnotify.Multi(
			xnotify.LogNotifier{Logger: rt.logger.With(slog.String("component", "notice"))},
			consoleNotifier(stderr),
		)),
	)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() error { rt.client.Close(); return nil })

	rt.admin, err = xadmin.New(rt.client, xadmin.WithLogger(rt.logger))
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() error { rt.admin.Close(); return nil })

	rt.client.Session().Store().Hydrate(ctx)
	return rt, nil
}

func (rt *runtime) buildLogger(w io.Writer) error {
	b := xlog.New().
		SetOutput(w).
		SetLevelString(rt.cfg.Log.Level).
		SetFormat(rt.cfg.Log.Format).
		With(slog.String("app", "xadminctl"))
	if rt.cfg.Log.Level == "" {
		b.SetLevel(slog.LevelWarn)
	}
	if rt.cfg.Log.File != "" {
		b.SetRotation(rt.cfg.Log.File, rt.cfg.Log.Rotation)
	}
	logger, level, cleanup, err := b.Build()
	if err != nil {
		return err
	}
	rt.logger, rt.level = logger, level
	rt.closers = append(rt.closers, cleanup)
	return nil
}

// buildBackend 按配置选择令牌后端：Redis > 加密文件 > 明文文件。
func (rt *runtime) buildBackend() (xtoken.Backend, error) {
	tc := rt.cfg.Token
	if tc.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     tc.Redis.Addr,
			Password: tc.Redis.Password,
			DB:       tc.Redis.DB,
		})
		rt.closers = append(rt.closers, client.Close)
		opts := []xtoken.RedisOption{
			xtoken.WithRedisKey(tc.Redis.Key),
			xtoken.WithRedisTTL(tc.Redis.TTL),
			xtoken.WithRedisBreakerStateChange(func(from, to gobreaker.State) {
				rt.logger.Warn("xadminctl: token backend breaker changed",
					slog.String("from", from.String()), slog.String("to", to.String()))
			}),
		}
		if tc.KeyFile != "" {
			key, err := xtoken.LoadOrCreateKey(tc.KeyFile)
			if err != nil {
				return nil, err
			}
			sealer, err := xtoken.NewXChaChaSealer(key)
			if err != nil {
				return nil, err
			}
			opts = append(opts, xtoken.WithRedisSealer(sealer))
		}
		rt.tokenAt = "redis://" + tc.Redis.Addr
		return xtoken.NewRedisBackend(client, opts...)
	}

	var fileOpts []xtoken.FileOption
	if tc.LegacyFile != "" {
		fileOpts = append(fileOpts, xtoken.WithLegacyPath(tc.LegacyFile))
	}
	rt.tokenAt = tc.File
	if tc.KeyFile != "" {
		return xtoken.NewEncryptedFileBackend(tc.File, tc.KeyFile, fileOpts...)
	}
	return xtoken.NewFileBackend(tc.File, fileOpts...)
}

// Close 逆序释放资源。
func (rt *runtime) Close() {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if err := errors.Join(errs...); err != nil && rt.logger != nil {
		rt.logger.Debug("xadminctl: close runtime", slog.String("error", err.Error()))
	}
}

// consoleNotifier 把提示打印到 stderr。
func consoleNotifier(w io.Writer) xnotify.Notifier {
	return xnotify.NotifierFunc(func(_ context.Context, n xnotify.Notice) {
		_, _ = fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	})
}

// outWriter 返回根命令的标准输出。
func outWriter(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

// errWriter 返回根命令的错误输出。
func errWriter(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.ErrWriter != nil {
		return root.ErrWriter
	}
	return os.Stderr
}
