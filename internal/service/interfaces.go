// Package service 定义 Handler 层依赖的业务接口
package service

import (
	"context"

	"shop_chat_server/internal/dto/request"
	"shop_chat_server/internal/dto/respond"
	"shop_chat_server/internal/service/chat"
)

// ChatService 一轮对话
type ChatService interface {
	SendMessage(ctx context.Context, turn chat.Turn) (*respond.ChatMessageRespond, error)
}

// SessionService 会话查询与所有权变更
type SessionService interface {
	GetSessionInfo(ctx context.Context, sessionID, userID string) (*respond.SessionInfoRespond, error)
	ListSessions(ctx context.Context, userID, deviceID string) ([]respond.SessionSummaryRespond, error)
	LatestSession(ctx context.Context, deviceID string) (*respond.SessionInfoRespond, error)
	Heartbeat(ctx context.Context, sessionID string) error
	UpgradeSession(ctx context.Context, sessionID, userID string) (*respond.UpgradeSessionRespond, error)
	MigrateDeviceSessions(ctx context.Context, deviceID, userID string) (*respond.MigrateSessionsRespond, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
}

// UserService 注册与登录
type UserService interface {
	Register(ctx context.Context, req request.RegisterRequest) (*respond.RegisterRespond, error)
	Login(ctx context.Context, req request.LoginRequest) (*respond.LoginRespond, error)
}

// AuthService Token 刷新与注销
type AuthService interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID string) error
}

// OrderService 下单、查询、认领
type OrderService interface {
	Create(ctx context.Context, userID string, req request.CreateOrderRequest) (*respond.OrderRespond, error)
	Track(ctx context.Context, orderID string) (*respond.OrderRespond, error)
	Claim(ctx context.Context, userID, deviceID string) (*respond.ClaimOrdersRespond, error)
	ListMine(ctx context.Context, userID string) ([]respond.OrderRespond, error)
}

// HealthChecker 依赖连通性检查
type HealthChecker interface {
	Ping(ctx context.Context) error
}
