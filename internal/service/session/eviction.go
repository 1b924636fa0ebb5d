package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shop_chat_server/pkg/constants"
)

// CleanupDevice 只保留设备最近活跃的 keepLatest 个会话，其余一次 UNLINK 删除
// 返回删除的数量；keepLatest 为负数时按 0 处理。索引成员不做清理，随 TTL 过期
func (s *Store) CleanupDevice(ctx context.Context, deviceID string, keepLatest int) (int, error) {
	if keepLatest < 0 {
		keepLatest = 0
	}
	sessions, err := s.GetByDevice(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if len(sessions) <= keepLatest {
		return 0, nil
	}

	// GetByDevice 已按 last_activity_at 倒序，前 keepLatest 个保留
	victims := sessions[keepLatest:]
	keys := make([]string, len(victims))
	for i, sess := range victims {
		keys[i] = sessionKey(sess.SessionID)
	}
	if err := s.client.Unlink(ctx, keys...).Err(); err != nil {
		return 0, wrapStoreErr(err, "cleanup device %s", deviceID)
	}

	zap.L().Info("device sessions evicted",
		zap.String("device_id", deviceID),
		zap.Int("deleted", len(victims)),
		zap.Int("kept", keepLatest))
	return len(victims), nil
}

// KeyScanner 分批扫描键，由 dao/redis.CacheService 实现
type KeyScanner interface {
	ScanKeys(ctx context.Context, pattern string, batch int64, fn func(keys []string) error) error
}

// Sweeper 周期性遍历所有设备索引并执行 CleanupDevice
type Sweeper struct {
	store      *Store
	scanner    KeyScanner
	keepLatest int
	interval   time.Duration
	batch      int64
}

// NewSweeper 创建周期清理器，interval <= 0 时 Run 直接返回
func NewSweeper(store *Store, scanner KeyScanner, keepLatest int, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:      store,
		scanner:    scanner,
		keepLatest: keepLatest,
		interval:   interval,
		batch:      200,
	}
}

// SweepOnce 扫描一轮，返回处理的设备数和删除的会话数
// 单个设备失败只记录日志，不影响其他设备
func (w *Sweeper) SweepOnce(ctx context.Context) (devices, deleted int, err error) {
	err = w.scanner.ScanKeys(ctx, constants.DeviceSessionsKeyPrefix+"*", w.batch, func(keys []string) error {
		for _, key := range keys {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			deviceID := deviceIDFromIndexKey(key)
			n, cerr := w.store.CleanupDevice(ctx, deviceID, w.keepLatest)
			if cerr != nil {
				zap.L().Warn("sweep device failed", zap.String("device_id", deviceID), zap.Error(cerr))
				continue
			}
			devices++
			deleted += n
		}
		return nil
	})
	return devices, deleted, err
}

// Run 按间隔执行清理，直到 ctx 结束
func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	zap.L().Info("session sweeper started", zap.Duration("interval", w.interval), zap.Int("keep_latest", w.keepLatest))
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("session sweeper stopped")
			return
		case <-ticker.C:
			devices, deleted, err := w.SweepOnce(ctx)
			if err != nil && ctx.Err() == nil {
				zap.L().Error("session sweep failed", zap.Error(err))
				continue
			}
			zap.L().Debug("session sweep finished", zap.Int("devices", devices), zap.Int("deleted", deleted))
		}
	}
}
