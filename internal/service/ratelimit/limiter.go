// Package ratelimit 实现基于 Redis 的固定窗口限流
// 键为 ratelimit:<identity>:<floor(unix/window)>，窗口边界附近最多放行 2 倍请求
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"shop_chat_server/pkg/constants"
	"shop_chat_server/pkg/errorx"
)

// luaIncrWindow 计数 +1，首次计数时设置过期
// KEYS[1] = window key, ARGV[1] = windowSeconds
var luaIncrWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
end
return count
`)

// Limiter 固定窗口限流器
type Limiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewLimiter 创建限流器
func NewLimiter(client redis.UniversalClient) *Limiter {
	return &Limiter{client: client, now: time.Now}
}

// WithClock 替换时钟，测试中使用
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// WindowKey 计算 identity 在当前时间所处窗口的键
func WindowKey(identity string, windowSeconds int, now time.Time) string {
	bucket := now.Unix() / int64(windowSeconds)
	return constants.RateLimitKeyPrefix + identity + ":" + strconv.FormatInt(bucket, 10)
}

// CheckAndIncrement 计数并判断是否超限
// 返回本次计数后的值；超限时同时返回 RateLimitExceeded，超限的这次计数同样保留
func (l *Limiter) CheckAndIncrement(ctx context.Context, identity string, maxRequests int64, windowSeconds int) (int64, error) {
	if identity == "" {
		return 0, errorx.ErrInvalidIdentity
	}
	if windowSeconds <= 0 || maxRequests <= 0 {
		return 0, errorx.Newf(errorx.CodeInvalidParam, "invalid rate limit %d/%ds", maxRequests, windowSeconds)
	}

	key := WindowKey(identity, windowSeconds, l.now())
	count, err := luaIncrWindow.Run(ctx, l.client, []string{key}, windowSeconds).Int64()
	if err != nil {
		var replyErr redis.Error
		if errors.As(err, &replyErr) {
			return 0, errorx.Wrapf(err, errorx.CodeCacheError, "rate limit incr %s", key)
		}
		return 0, errorx.Wrapf(err, errorx.CodeStoreUnavailable, "rate limit incr %s", key)
	}
	if count > maxRequests {
		return count, errorx.Newf(errorx.CodeRateLimitExceeded,
			"rate limit exceeded, max %d requests per %d seconds", maxRequests, windowSeconds)
	}
	return count, nil
}
