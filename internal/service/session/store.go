// Package session 实现基于 Redis 的临时会话存储
// 会话记录为 session:<id> 的 JSON 值，另外维护按设备、按用户的索引集合。
// 所有读改写在 Lua 脚本内完成；索引只是提示，可能包含已过期的会话 ID，读取时跳过。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/constants"
	"shop_chat_server/pkg/errorx"
)

// Store 会话存储
// 并发安全：本身无状态，所有并发控制交给 Redis 服务端
type Store struct {
	client      redis.UniversalClient
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
}

// Option 配置 Store
type Option func(*Store)

// WithTTL 设置会话及索引的 TTL
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl >= time.Second {
			s.ttl = ttl
		}
	}
}

// WithMaxMessages 设置单会话保留的消息条数
func WithMaxMessages(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

// WithClock 替换时钟，测试中使用
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore 创建会话存储
func NewStore(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:      client,
		ttl:         constants.SESSION_TTL_SECONDS * time.Second,
		maxMessages: constants.MAX_SESSION_MESSAGES,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL 当前使用的会话 TTL
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) ttlSeconds() string {
	return strconv.FormatInt(int64(s.ttl/time.Second), 10)
}

func (s *Store) timestamp() string {
	return model.FormatTime(s.now())
}

// Create 为 owner 创建一个空会话并登记到所有者索引
// sessionID 为空时生成 uuid
func (s *Store) Create(ctx context.Context, owner model.Identity, sessionID string) (*model.Session, error) {
	if !owner.Valid() {
		return nil, errorx.ErrInvalidIdentity
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess := model.NewSession(sessionID, owner, s.now())
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeServerBusy, "marshal session")
	}

	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return nil, wrapStoreErr(err, "create session %s", sessionID)
	}
	if err := s.addToIndex(ctx, ownerIndexKey(owner), sessionID); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get 读取会话，不刷新 TTL
func (s *Store) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		return nil, wrapStoreErr(err, "get session %s", sessionID)
	}
	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "decode session %s", sessionID)
	}
	return &sess, nil
}

// storedMessage 消息在会话文档中的编码
// 商品是 AI 返回的任意结构，整体存成字符串，cjson 重新编码会话时不会改写其中的空数组
type storedMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Products  string `json:"products,omitempty"`
	Intent    string `json:"intent,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// AddMessage 原子地追加一条消息，裁剪到上限，更新 last_activity_at 并重置 TTL
func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string, meta model.MessageMeta) error {
	if !model.RoleValid(role) {
		return errorx.Newf(errorx.CodeInvalidParam, "invalid message role %q", role)
	}

	now := s.timestamp()
	msg := storedMessage{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Intent:    meta.Intent,
		MessageID: meta.MessageID,
	}
	if len(meta.Products) > 0 {
		products, err := json.Marshal(meta.Products)
		if err != nil {
			return errorx.Wrap(err, errorx.CodeInvalidParam, "marshal products")
		}
		msg.Products = string(products)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "marshal message")
	}

	err = luaAppendMessage.Run(ctx, s.client, []string{sessionKey(sessionID)},
		string(data), s.maxMessages, now, s.ttlSeconds()).Err()
	if err != nil {
		return wrapStoreErr(err, "append message to session %s", sessionID)
	}
	return nil
}

// UpgradeToAuthenticated 把会话归属切换到 userID 并登记用户索引
// 对同一用户重复调用不改变会话内容；归属其他用户的会话会被覆盖，调用方负责鉴权
func (s *Store) UpgradeToAuthenticated(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	return s.upgrade(ctx, sessionID, userID, false)
}

// upgrade guarded 为 true 时，已属于其他用户的会话返回 Forbidden 且不写入
func (s *Store) upgrade(ctx context.Context, sessionID, userID string, guarded bool) (*model.Session, error) {
	if userID == "" {
		return nil, errorx.ErrInvalidIdentity
	}
	flag := "0"
	if guarded {
		flag = "1"
	}

	res, err := luaUpgradeSession.Run(ctx, s.client, []string{sessionKey(sessionID)},
		userID, s.timestamp(), s.ttlSeconds(), flag).Result()
	if err != nil {
		return nil, wrapStoreErr(err, "upgrade session %s", sessionID)
	}
	raw, ok := res.(string)
	if !ok {
		return nil, errorx.Newf(errorx.CodeForbidden, "session %s belongs to another user", sessionID)
	}

	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "decode session %s", sessionID)
	}
	if err := s.addToIndex(ctx, userIndexKey(userID), sessionID); err != nil {
		return nil, err
	}
	return &sess, nil
}

// MigrateDeviceSessions 将设备索引下所有仍存活的游客会话升级到 userID
// 已归属其他用户的会话保持不变，不计入迁移数量
// 整体不是原子的：中途失败时返回已迁移的数量和错误，可以整体重试
func (s *Store) MigrateDeviceSessions(ctx context.Context, deviceID, userID string) (int, error) {
	if deviceID == "" || userID == "" {
		return 0, errorx.ErrInvalidIdentity
	}
	ids, err := s.client.SMembers(ctx, deviceIndexKey(deviceID)).Result()
	if err != nil {
		return 0, wrapStoreErr(err, "read device index %s", deviceID)
	}

	migrated, skipped := 0, 0
	for _, id := range ids {
		if _, err := s.upgrade(ctx, id, userID, true); err != nil {
			switch errorx.GetCode(err) {
			case errorx.CodeSessionNotFound:
				continue
			case errorx.CodeForbidden:
				skipped++
				continue
			}
			return migrated, err
		}
		migrated++
	}
	zap.L().Info("device sessions migrated",
		zap.String("device_id", deviceID),
		zap.String("user_id", userID),
		zap.Int("count", migrated),
		zap.Int("skipped_foreign", skipped))
	return migrated, nil
}

// SetGuestInfo 覆盖访客联系信息，已登录会话返回 Forbidden
func (s *Store) SetGuestInfo(ctx context.Context, sessionID string, info model.GuestInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "marshal guest info")
	}
	res, err := luaSetGuestInfo.Run(ctx, s.client, []string{sessionKey(sessionID)},
		string(data), s.timestamp(), s.ttlSeconds()).Int64()
	if err != nil {
		return wrapStoreErr(err, "set guest info on session %s", sessionID)
	}
	if res == 0 {
		return errorx.Newf(errorx.CodeForbidden, "session %s is already authenticated", sessionID)
	}
	return nil
}

// GetByDevice 设备索引下所有存活的会话，按 last_activity_at 倒序
func (s *Store) GetByDevice(ctx context.Context, deviceID string) ([]*model.Session, error) {
	return s.listIndex(ctx, deviceIndexKey(deviceID))
}

// GetByUser 用户索引下所有存活的会话，按 last_activity_at 倒序
func (s *Store) GetByUser(ctx context.Context, userID string) ([]*model.Session, error) {
	return s.listIndex(ctx, userIndexKey(userID))
}

// GetLatestByDevice 设备最近活跃的会话，没有时返回 nil, nil
func (s *Store) GetLatestByDevice(ctx context.Context, deviceID string) (*model.Session, error) {
	sessions, err := s.GetByDevice(ctx, deviceID)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return sessions[0], nil
}

// ExtendTTL 只刷新 TTL，返回键是否存在
func (s *Store) ExtendTTL(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.client.Expire(ctx, sessionKey(sessionID), s.ttl).Result()
	if err != nil {
		return false, wrapStoreErr(err, "extend session %s", sessionID)
	}
	return ok, nil
}

// Delete 删除会话记录，索引中的成员留待过期
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Unlink(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, wrapStoreErr(err, "delete session %s", sessionID)
	}
	return n > 0, nil
}

// listIndex SMEMBERS + MGET，跳过已失效的成员
func (s *Store) listIndex(ctx context.Context, indexKey string) ([]*model.Session, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, wrapStoreErr(err, "read index %s", indexKey)
	}
	if len(ids) == 0 {
		return []*model.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapStoreErr(err, "mget index %s", indexKey)
	}

	sessions := make([]*model.Session, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var sess model.Session
		if err := json.Unmarshal([]byte(str), &sess); err != nil {
			zap.L().Warn("skip undecodable session", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		sessions = append(sessions, &sess)
	}
	sortByActivityDesc(sessions)
	return sessions, nil
}

// addToIndex SADD + EXPIRE，索引 TTL 与会话一致
func (s *Store) addToIndex(ctx context.Context, indexKey, sessionID string) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, indexKey, sessionID)
		pipe.Expire(ctx, indexKey, s.ttl)
		return nil
	})
	if err != nil {
		return wrapStoreErr(err, "index session %s in %s", sessionID, indexKey)
	}
	return nil
}

func ownerIndexKey(owner model.Identity) string {
	if owner.IsUser() {
		return userIndexKey(owner.ID)
	}
	return deviceIndexKey(owner.ID)
}

// sortByActivityDesc 时间戳为定宽格式，直接按字符串比较
func sortByActivityDesc(sessions []*model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].LastActivityAt == sessions[j].LastActivityAt {
			return sessions[i].SessionID > sessions[j].SessionID
		}
		return sessions[i].LastActivityAt > sessions[j].LastActivityAt
	})
}

// wrapStoreErr 把 Redis 错误转换为业务错误
//   - redis.Nil -> CodeSessionNotFound
//   - 服务端返回的错误（脚本错误等）-> CodeCacheError
//   - 网络、超时、context 取消 -> CodeStoreUnavailable
func wrapStoreErr(err error, format string, args ...any) error {
	if errors.Is(err, redis.Nil) {
		return errorx.Wrapf(err, errorx.CodeSessionNotFound, format, args...)
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return errorx.Wrapf(err, errorx.CodeCacheError, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeStoreUnavailable, format, args...)
}
