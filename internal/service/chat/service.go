// Package chat 编排一轮对话：身份 → 限流 → 会话 → 写入用户消息 → AI → 写入回复
// 同时提供会话查询、升级、迁移、删除等面向接口层的操作
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shop_chat_server/internal/dto/respond"
	"shop_chat_server/internal/infrastructure/ai"
	"shop_chat_server/internal/infrastructure/mq"
	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/constants"
	"shop_chat_server/pkg/errorx"
	"shop_chat_server/pkg/util/snowflake"
)

// backgroundTimeout 后台任务（清理、投递）脱离请求上下文后的最长执行时间
const backgroundTimeout = 5 * time.Second

// SessionStore 会话存储，*session.Store 实现
type SessionStore interface {
	Create(ctx context.Context, owner model.Identity, sessionID string) (*model.Session, error)
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	AddMessage(ctx context.Context, sessionID, role, content string, meta model.MessageMeta) error
	UpgradeToAuthenticated(ctx context.Context, sessionID, userID string) (*model.Session, error)
	MigrateDeviceSessions(ctx context.Context, deviceID, userID string) (int, error)
	GetByDevice(ctx context.Context, deviceID string) ([]*model.Session, error)
	GetByUser(ctx context.Context, userID string) ([]*model.Session, error)
	GetLatestByDevice(ctx context.Context, deviceID string) (*model.Session, error)
	ExtendTTL(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	CleanupDevice(ctx context.Context, deviceID string, keepLatest int) (int, error)
}

// RateLimiter 固定窗口计数器，*ratelimit.Limiter 实现
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, identity string, maxRequests int64, windowSeconds int) (int64, error)
}

// Options 编排参数
type Options struct {
	MaxRequests   int64
	WindowSeconds int
	KeepLatest    int
	FallbackText  string
}

// Turn 一轮对话的输入；UserID 来自 Token，游客为空
type Turn struct {
	UserID    string
	DeviceID  string
	SessionID string
	Message   string
}

// Service 对话编排
type Service struct {
	store     SessionStore
	limiter   RateLimiter
	responder ai.Responder
	publisher mq.Publisher
	submit    func(func())
	opts      Options

	newMessageID func() string
	newSessionID func() string
	now          func() time.Time
}

// NewService submit 为空时后台任务同步执行
func NewService(store SessionStore, limiter RateLimiter, responder ai.Responder, publisher mq.Publisher, submit func(func()), opts Options) *Service {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	if submit == nil {
		submit = func(task func()) { task() }
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = constants.RATE_LIMIT_MAX_REQUESTS
	}
	if opts.WindowSeconds <= 0 {
		opts.WindowSeconds = constants.RATE_LIMIT_WINDOW_SECONDS
	}
	if opts.KeepLatest <= 0 {
		opts.KeepLatest = constants.DEVICE_KEEP_LATEST
	}
	return &Service{
		store:        store,
		limiter:      limiter,
		responder:    responder,
		publisher:    publisher,
		submit:       submit,
		opts:         opts,
		newMessageID: snowflake.GenerateIDString,
		newSessionID: uuid.NewString,
		now:          time.Now,
	}
}

// identityOf 登录用户优先，其次设备
func identityOf(userID, deviceID string) model.Identity {
	if userID != "" {
		return model.UserIdentity(userID)
	}
	return model.DeviceIdentity(deviceID)
}

// SendMessage 处理一轮对话
func (s *Service) SendMessage(ctx context.Context, turn Turn) (*respond.ChatMessageRespond, error) {
	identity := identityOf(turn.UserID, turn.DeviceID)
	if !identity.Valid() {
		return nil, errorx.New(errorx.CodeInvalidIdentity, "device_id required for guest users")
	}

	if _, err := s.limiter.CheckAndIncrement(ctx, identity.String(), s.opts.MaxRequests, s.opts.WindowSeconds); err != nil {
		if errorx.IsRateLimited(err) {
			zap.L().Warn("rate limit exceeded", zap.String("identity", identity.String()))
		}
		return nil, err
	}

	if !identity.IsUser() {
		deviceID := identity.ID
		s.background(func(ctx context.Context) {
			if n, err := s.store.CleanupDevice(ctx, deviceID, s.opts.KeepLatest); err != nil {
				zap.L().Warn("cleanup device sessions failed", zap.String("device_id", deviceID), zap.Error(err))
			} else if n > 0 {
				zap.L().Info("device sessions evicted", zap.String("device_id", deviceID), zap.Int("deleted", n))
			}
		})
	}

	sess, created, err := s.resolveSession(ctx, identity, turn.SessionID)
	if err != nil {
		return nil, err
	}
	sessionID := sess.SessionID
	messageID := s.newMessageID()

	sessionID, recreated, err := s.appendWithRetry(ctx, identity, sessionID, constants.RoleUser, turn.Message,
		model.MessageMeta{MessageID: messageID})
	if err != nil {
		return nil, err
	}
	created = created || recreated

	userID, deviceID := ownerFields(identity)
	reqEvt := mq.ChatRequestEvent{
		MessageID:       messageID,
		SessionID:       sessionID,
		UserID:          userID,
		DeviceID:        deviceID,
		IsAuthenticated: identity.IsUser(),
		Message:         turn.Message,
		Timestamp:       model.FormatTime(s.now()),
	}
	s.background(func(ctx context.Context) {
		if err := s.publisher.PublishChatRequest(ctx, reqEvt); err != nil {
			zap.L().Warn("publish chat request failed", zap.String("session_id", reqEvt.SessionID), zap.Error(err))
		}
	})

	reply := s.ask(ctx, turn.Message, sessionID)

	sessionID, recreated, err = s.appendWithRetry(ctx, identity, sessionID, constants.RoleAssistant, reply.Response,
		model.MessageMeta{Products: reply.Products, Intent: reply.Intent, MessageID: messageID})
	if err != nil {
		return nil, err
	}
	created = created || recreated

	respEvt := mq.ChatResponseEvent{
		MessageID:  messageID,
		SessionID:  sessionID,
		UserID:     userID,
		DeviceID:   deviceID,
		Response:   reply.Response,
		Products:   reply.Products,
		Intent:     reply.Intent,
		Confidence: reply.Confidence,
		Timestamp:  model.FormatTime(s.now()),
	}
	s.background(func(ctx context.Context) {
		if err := s.publisher.PublishChatResponse(ctx, respEvt); err != nil {
			zap.L().Warn("publish chat response failed", zap.String("session_id", respEvt.SessionID), zap.Error(err))
		}
	})

	return &respond.ChatMessageRespond{
		MessageID:       messageID,
		SessionID:       sessionID,
		DeviceID:        deviceID,
		UserID:          userID,
		UserMessage:     turn.Message,
		AIResponse:      reply.Response,
		Products:        reply.Products,
		Intent:          reply.Intent,
		Timestamp:       respEvt.Timestamp,
		IsAuthenticated: identity.IsUser(),
		SessionCreated:  created,
	}, nil
}

// resolveSession 没有 session_id 或者已过期时新建，存在时校验归属
func (s *Service) resolveSession(ctx context.Context, identity model.Identity, sessionID string) (*model.Session, bool, error) {
	if sessionID != "" {
		sess, err := s.store.Get(ctx, sessionID)
		switch {
		case err == nil:
			if !sess.OwnedBy(identity) {
				return nil, false, errorx.New(errorx.CodeForbidden, "session does not belong to you")
			}
			return sess, false, nil
		case errorx.IsSessionNotFound(err):
			zap.L().Warn("session not found, creating new", zap.String("session_id", sessionID))
		default:
			return nil, false, err
		}
	}
	sess, err := s.store.Create(ctx, identity, s.newSessionID())
	if err != nil {
		return nil, false, err
	}
	zap.L().Info("session created", zap.String("session_id", sess.SessionID), zap.String("owner", identity.String()))
	return sess, true, nil
}

// appendWithRetry 会话在写入时刚好过期：为同一身份新建会话并重试一次
// 新会话不会与并发创建的其他会话合并或排序
func (s *Service) appendWithRetry(ctx context.Context, identity model.Identity, sessionID, role, content string, meta model.MessageMeta) (string, bool, error) {
	err := s.store.AddMessage(ctx, sessionID, role, content, meta)
	if err == nil {
		return sessionID, false, nil
	}
	if !errorx.IsSessionNotFound(err) {
		return "", false, err
	}
	zap.L().Warn("session expired during append, recreating",
		zap.String("session_id", sessionID), zap.String("role", role))

	sess, err := s.store.Create(ctx, identity, s.newSessionID())
	if err != nil {
		return "", false, err
	}
	if err := s.store.AddMessage(ctx, sess.SessionID, role, content, meta); err != nil {
		return "", false, err
	}
	return sess.SessionID, true, nil
}

// ask AI 不可用时使用兜底回复，不中断对话
func (s *Service) ask(ctx context.Context, message, sessionID string) *ai.Reply {
	reply, err := s.responder.SendMessage(ctx, message, sessionID)
	if err != nil {
		zap.L().Warn("ai responder failed, using fallback", zap.String("session_id", sessionID), zap.Error(err))
	}
	if reply == nil {
		reply = &ai.Reply{Response: s.opts.FallbackText, Intent: constants.IntentSystemError}
	}
	if reply.Products == nil {
		reply.Products = model.ProductList{}
	}
	return reply
}

func (s *Service) background(task func(ctx context.Context)) {
	s.submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		task(ctx)
	})
}

func ownerFields(identity model.Identity) (userID, deviceID string) {
	if identity.IsUser() {
		return identity.ID, ""
	}
	return "", identity.ID
}
