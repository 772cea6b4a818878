// Package xconf 基于 koanf 的配置源，供 xadminctl 等入口加载客户端配置。
//
// # 加载
//
// Source 从文件（按扩展名识别 yaml/json）或字节数据加载，
// 解析后的 koanf 实例通过 atomic.Pointer 发布，Reload 成功前旧快照保持可读。
//
//	src, err := xconf.New("xadmin.yaml", xconf.WithEnvPrefix("XADMIN_"))
//	var cfg AppConfig
//	err = src.Unmarshal("", &cfg)
//
// # 环境变量覆盖
//
// 设置 WithEnvPrefix 后，形如 XADMIN_CLIENT__BASE_URL 的变量覆盖 client.base_url：
// 去掉前缀、转小写、双下划线映射为层级分隔符。覆盖在每次加载与 Reload 时重新应用。
//
// # 监视
//
// Watch 监视文件所在目录（兼容编辑器的 rename 写入），防抖后 Reload 并回调，
// 阻塞直到 ctx 取消。字节数据创建的 Source 不支持监视。
package xconf
