package router

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/infrastructure/middleware"
)

// RegisterAuthRoutes 注册、登录、刷新与注销
func (rt *Router) RegisterAuthRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", rt.handlers.Auth.Register)
	rg.POST("/login", rt.handlers.Auth.Login)
	rg.POST("/refresh", rt.handlers.Auth.RefreshToken)
	rg.POST("/logout", middleware.JWTAuth(), rt.handlers.Auth.Logout)
}
