package router

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/infrastructure/middleware"
)

// RegisterOrderRoutes 订单路由
func (rt *Router) RegisterOrderRoutes(rg *gin.RouterGroup) {
	h := rt.handlers.Order

	rg.POST("/create", middleware.OptionalJWTAuth(), h.CreateOrder) // 游客或登录用户
	rg.GET("/track/:id", h.TrackOrder)

	authed := rg.Group("", middleware.JWTAuth())
	{
		authed.POST("/claim", h.ClaimOrders)
		authed.GET("/mine", h.MyOrders)
	}
}
