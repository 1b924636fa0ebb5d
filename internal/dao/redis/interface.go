// Package redis 定义缓存服务接口
// 遵循依赖倒置原则，Service 层依赖此接口而非具体 Redis 实现
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService 缓存服务接口
// 抽象基础的同步读写，认证、健康检查等只需要这一层
type CacheService interface {
	// ==================== String 操作 ====================

	// Set 设置键值对并指定过期时间
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get 获取键对应的值（键不存在返回空字符串和 nil）
	Get(ctx context.Context, key string) (string, error)

	// ==================== Key 操作 ====================

	// Delete 删除键（如果存在）
	Delete(ctx context.Context, key string) error
	// ScanKeys 按模式分批扫描键，每批回调一次，回调返回错误时中止
	ScanKeys(ctx context.Context, pattern string, batch int64, fn func(keys []string) error) error

	// Ping 连通性检查
	Ping(ctx context.Context) error
}

// AsyncCacheService 在 CacheService 基础上提供异步任务和底层客户端
// 会话存储需要 Lua 脚本和 MGET，因此通过 Client 拿到 UniversalClient
type AsyncCacheService interface {
	CacheService

	// SubmitTask 提交异步任务，通道满时同步执行
	SubmitTask(action func())
	// Client 底层客户端
	Client() redis.UniversalClient
	// Close 停止 Worker 并关闭客户端
	Close() error
}
