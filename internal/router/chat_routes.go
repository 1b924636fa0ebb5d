package router

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/infrastructure/middleware"
)

// RegisterChatRoutes 对话与会话路由
// 游客凭 device_id 访问，登录用户由 JWT 识别
func (rt *Router) RegisterChatRoutes(rg *gin.RouterGroup) {
	h := rt.handlers

	guest := rg.Group("", middleware.OptionalJWTAuth())
	{
		guest.POST("/message", h.Chat.SendMessage)
		guest.GET("/session/:id", h.Session.GetSessionInfo)
		guest.GET("/sessions", h.Session.ListSessions)
		guest.GET("/sessions/latest", h.Session.LatestSession)
		guest.POST("/session/:id/heartbeat", h.Session.Heartbeat)
	}

	// 所有权变更必须登录
	authed := rg.Group("", middleware.JWTAuth())
	{
		authed.POST("/session/upgrade", h.Session.UpgradeSession)
		authed.POST("/session/migrate", h.Session.MigrateSessions)
		authed.DELETE("/session/:id", h.Session.DeleteSession)
	}
}
