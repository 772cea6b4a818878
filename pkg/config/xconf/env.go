package xconf

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

// applyEnv 将带前缀的环境变量覆盖到 k。
// XADMIN_CLIENT__BASE_URL -> client.base_url（以默认分隔符为例）。
func applyEnv(k *koanf.Koanf, o *options) error {
	if o.envPrefix == "" {
		return nil
	}
	for _, kv := range o.lookupEnv() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, o.envPrefix) {
			continue
		}
		key := envKey(strings.TrimPrefix(name, o.envPrefix), o.delim)
		if key == "" {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("%w: env %s: %w", ErrLoadFailed, name, err)
		}
	}
	return nil
}

func envKey(name, delim string) string {
	parts := strings.Split(strings.ToLower(name), "__")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, delim)
}
