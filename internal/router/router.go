// Package router 提供 HTTP 路由注册
package router

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/handler"
)

// Router 持有 Handler 聚合，按模块注册路由组
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", rt.handlers.Health.Health)

	rt.RegisterChatRoutes(r.Group("/chat"))
	rt.RegisterAuthRoutes(r.Group("/auth"))
	rt.RegisterOrderRoutes(r.Group("/orders"))
}
