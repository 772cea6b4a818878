package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xadmin/pkg/config/xconf"
	"github.com/omeyang/xadmin/pkg/observability/xlog"
	"github.com/omeyang/xadmin/pkg/session/xclient"
	"github.com/omeyang/xadmin/pkg/session/xtoken"
)

// envPrefix 覆盖配置文件的环境变量前缀。
const envPrefix = "XADMIN_"

// defaultKeepaliveInterval keepalive 默认间隔。
const defaultKeepaliveInterval = 30 * time.Second

// appConfig xadminctl 配置文件结构。
type appConfig struct {
	Client    xclient.Config  `koanf:"client"`
	Log       logConfig       `koanf:"log"`
	Token     tokenConfig     `koanf:"token"`
	Keepalive keepaliveConfig `koanf:"keepalive"`
}

type logConfig struct {
	Level    string              `koanf:"level"`
	Format   string              `koanf:"format"`
	File     string              `koanf:"file"`
	Rotation xlog.RotationConfig `koanf:"rotation"`
}

type tokenConfig struct {
	File       string      `koanf:"file"`
	KeyFile    string      `koanf:"key_file"`
	LegacyFile string      `koanf:"legacy_file"`
	Redis      redisConfig `koanf:"redis"`
}

// redisConfig 设置 Addr 后令牌保存在 Redis，优先于文件。
type redisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Key      string        `koanf:"key"`
	TTL      time.Duration `koanf:"ttl"`
}

type keepaliveConfig struct {
	Interval time.Duration `koanf:"interval"`
}

func (c *appConfig) applyDefaults() error {
	if c.Token.File == "" && c.Token.Redis.Addr == "" {
		path, err := xtoken.DefaultPath()
		if err != nil {
			return err
		}
		c.Token.File = path
	}
	if c.Keepalive.Interval <= 0 {
		c.Keepalive.Interval = defaultKeepaliveInterval
	}
	c.Client.ApplyDefaults()
	return nil
}

// loadDotEnv 加载 .env 文件，不覆盖已有环境变量。path 为空时尝试 ./.env。
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("加载 %s 失败: %w", path, err)
	}
	return nil
}

// loadConfig 合并配置文件、环境变量与命令行 flag（优先级递增）。
// 未指定 --config 时返回的 Source 不支持热更新。
func loadConfig(cmd *cli.Command) (*appConfig, *xconf.Source, error) {
	var (
		src *xconf.Source
		err error
	)
	if path := cmd.String("config"); path != "" {
		src, err = xconf.New(path, xconf.WithEnvPrefix(envPrefix))
	} else {
		src, err = xconf.NewFromBytes(nil, xconf.FormatYAML, xconf.WithEnvPrefix(envPrefix))
	}
	if err != nil {
		return nil, nil, err
	}

	cfg, err := decodeConfig(src)
	if err != nil {
		return nil, nil, err
	}
	overrideFromFlags(cmd, cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, nil, err
	}
	if err := cfg.Client.Validate(); err != nil {
		if errors.Is(err, xclient.ErrMissingBaseURL) {
			return nil, nil, usagef("缺少后端地址，请使用 --base-url 或配置 client.base_url")
		}
		return nil, nil, err
	}
	return cfg, src, nil
}

func decodeConfig(src *xconf.Source) (*appConfig, error) {
	cfg := &appConfig{}
	if err := src.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromFlags(cmd *cli.Command, cfg *appConfig) {
	if v := cmd.String("base-url"); v != "" {
		cfg.Client.BaseURL = v
	}
	if cmd.Bool("insecure") {
		cfg.Client.AllowInsecure = true
	}
	if v := cmd.String("token-file"); v != "" {
		cfg.Token.File = v
	}
	if v := cmd.String("key-file"); v != "" {
		cfg.Token.KeyFile = v
	}
	if cmd.IsSet("timeout") || cfg.Client.Timeout == 0 {
		cfg.Client.Timeout = cmd.Duration("timeout")
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
}
