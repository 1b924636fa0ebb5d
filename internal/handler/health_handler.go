package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shop_chat_server/internal/service"
	"shop_chat_server/pkg/errorx"
)

// HealthHandler 存活探针
type HealthHandler struct {
	checker service.HealthChecker
}

// NewHealthHandler 创建探针处理器
func NewHealthHandler(checker service.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health Redis 可达返回 200，否则 503
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.checker.Ping(ctx); err != nil {
		zap.L().Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ResponseData{
			Code: errorx.CodeStoreUnavailable,
			Msg:  "unhealthy",
			Data: gin.H{"redis": "down"},
		})
		return
	}
	HandleSuccess(c, gin.H{"status": "ok", "redis": "up"})
}
