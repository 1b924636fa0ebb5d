package handler

import (
	"shop_chat_server/internal/service"
)

// Handlers 聚合所有 Handler，Router 层通过它访问各个处理器
type Handlers struct {
	Chat    *ChatHandler
	Session *SessionHandler
	Auth    *AuthHandler
	Order   *OrderHandler
	Health  *HealthHandler
}

// NewHandlers 把 Service 注入到各个 Handler
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Chat:    NewChatHandler(svc.Chat),
		Session: NewSessionHandler(svc.Session),
		Auth:    NewAuthHandler(svc.User, svc.Auth),
		Order:   NewOrderHandler(svc.Order),
		Health:  NewHealthHandler(svc.Health),
	}
}
