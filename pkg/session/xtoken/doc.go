// Package xtoken 管理会话的 access/refresh token 对。
//
// # 组成
//
//   - [TokenPair]：令牌对，空字符串表示缺失
//   - [Backend]：持久化后端，内置 [MemoryBackend]、[FileBackend]（可加密）、[RedisBackend]
//   - [Store]：内存热路径 + 后端持久化，首次读取前通过 [Store.Hydrate] 单飞加载
//
// # 持久化语义
//
// Store 先更新内存再写后端；后端失败只记录日志，不影响请求流程。
// 加载失败视为"无 token"。
//
// # 加密
//
// [NewEncryptedFileBackend] 使用每台机器独立生成的 32 字节密钥，
// 以 XChaCha20-Poly1305 加密令牌文件；没有密钥文件无法读取令牌。
package xtoken
