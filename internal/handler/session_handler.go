package handler

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/dto/request"
	"shop_chat_server/internal/infrastructure/middleware"
	"shop_chat_server/internal/service"
	"shop_chat_server/pkg/errorx"
)

// SessionHandler 会话请求处理器
type SessionHandler struct {
	sessionSvc service.SessionService
}

// NewSessionHandler 创建会话处理器实例
func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// GetSessionInfo 会话详情，最多返回最近 20 条消息
// GET /chat/session/:id
func (h *SessionHandler) GetSessionInfo(c *gin.Context) {
	data, err := h.sessionSvc.GetSessionInfo(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ListSessions 当前身份的会话列表，按最近活动倒序
// GET /chat/sessions?device_id=xxx
func (h *SessionHandler) ListSessions(c *gin.Context) {
	var req request.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.ListSessions(c.Request.Context(), middleware.CurrentUserID(c), req.DeviceID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// LatestSession 游客恢复最近一次会话
// GET /chat/sessions/latest?device_id=xxx
func (h *SessionHandler) LatestSession(c *gin.Context) {
	var req request.LatestSessionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.LatestSession(c.Request.Context(), req.DeviceID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Heartbeat 刷新会话过期时间
// POST /chat/session/:id/heartbeat
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.sessionSvc.Heartbeat(c.Request.Context(), sessionID); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"session_id": sessionID})
}

// UpgradeSession 把游客会话升级到当前登录用户
// POST /chat/session/upgrade
func (h *SessionHandler) UpgradeSession(c *gin.Context) {
	var req request.UpgradeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.UpgradeSession(c.Request.Context(), req.SessionID, middleware.CurrentUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MigrateSessions 把设备上的全部游客会话迁移到当前登录用户
// POST /chat/session/migrate
func (h *SessionHandler) MigrateSessions(c *gin.Context) {
	var req request.MigrateSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.MigrateDeviceSessions(c.Request.Context(), req.DeviceID, middleware.CurrentUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// DeleteSession 删除自己的会话
// DELETE /chat/session/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	if err := h.sessionSvc.DeleteSession(c.Request.Context(), sessionID, middleware.CurrentUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"session_id": sessionID, "deleted": true})
}
