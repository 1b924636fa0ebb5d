// Package redis 提供 Redis 缓存操作的封装
// 本文件仅包含 Redis 连接初始化逻辑
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shop_chat_server/internal/config"
	"shop_chat_server/pkg/errorx"
)

// pingTimeout 启动时连通性检查的超时时间
const pingTimeout = 3 * time.Second

// NewClient 按配置创建带连接池的 Redis 客户端
// 进程启动时创建一次，注入到所有使用方，退出时由 RedisCache.Close 关闭
func NewClient(conf *config.Config) *redis.Client {
	rc := conf.RedisConfig
	return redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr(),
		Password: rc.Password, // 密码，无密码留空
		DB:       rc.Db,       // 数据库编号

		// 连接池配置
		PoolSize:     rc.PoolSize,     // 最大连接数
		MinIdleConns: rc.MinIdleConns, // 最小空闲连接，与 Worker 数量匹配

		DialTimeout:  time.Duration(rc.DialTimeout) * time.Millisecond,
		ReadTimeout:  time.Duration(rc.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(rc.WriteTimeout) * time.Millisecond,
	})
}

// Init 创建客户端、检查连通性并启动缓存 Worker Pool
// 返回的 RedisCache 同时实现 CacheService 和 AsyncCacheService
func Init(conf *config.Config) (*RedisCache, error) {
	client := NewClient(conf)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errorx.Wrapf(err, errorx.CodeStoreUnavailable, "redis ping %s", conf.RedisAddr())
	}
	zap.L().Info("Redis 连接成功", zap.String("addr", conf.RedisAddr()), zap.Int("db", conf.RedisConfig.Db))

	return NewRedisCache(client, conf.SessionConfig.WorkerNum, conf.SessionConfig.TaskBuffer), nil
}
