package service

import (
	"shop_chat_server/internal/config"
	"shop_chat_server/internal/dao/mysql/repository"
	myredis "shop_chat_server/internal/dao/redis"
	"shop_chat_server/internal/infrastructure/ai"
	"shop_chat_server/internal/infrastructure/mq"
	"shop_chat_server/internal/service/auth"
	"shop_chat_server/internal/service/chat"
	"shop_chat_server/internal/service/order"
	"shop_chat_server/internal/service/ratelimit"
	"shop_chat_server/internal/service/session"
	"shop_chat_server/internal/service/user"
)

// Services 聚合所有 Service，作为 Handler 层的依赖入口
type Services struct {
	Chat    ChatService
	Session SessionService
	User    UserService
	Auth    AuthService
	Order   OrderService
	Health  HealthChecker

	// Store 同时供周期清理使用
	Store *session.Store
}

// Deps 构造 Services 所需的基础设施
type Deps struct {
	Conf      *config.Config
	Cache     myredis.AsyncCacheService
	Repos     *repository.Repositories
	Responder ai.Responder
	Publisher mq.Publisher
}

// NewServices 依赖注入：同一个 Redis 客户端被会话存储、限流、Token 存储共享
func NewServices(d Deps) *Services {
	client := d.Cache.Client()
	store := session.NewStore(client,
		session.WithTTL(d.Conf.SessionTTL()),
		session.WithMaxMessages(d.Conf.SessionConfig.MaxMessages))
	limiter := ratelimit.NewLimiter(client)

	chatSvc := chat.NewService(store, limiter, d.Responder, d.Publisher, d.Cache.SubmitTask, chat.Options{
		MaxRequests:   d.Conf.RateLimitConfig.MaxRequests,
		WindowSeconds: d.Conf.RateLimitConfig.WindowSeconds,
		KeepLatest:    d.Conf.SessionConfig.KeepLatest,
		FallbackText:  d.Conf.AIConfig.FallbackText,
	})
	authSvc := auth.NewAuthService(d.Cache)

	return &Services{
		Chat:    chatSvc,
		Session: chatSvc,
		User:    user.NewUserService(d.Repos.User, authSvc, store),
		Auth:    authSvc,
		Order:   order.NewOrderService(d.Repos.Order, store),
		Health:  d.Cache,
		Store:   store,
	}
}
