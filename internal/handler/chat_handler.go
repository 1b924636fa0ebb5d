// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/dto/request"
	"shop_chat_server/internal/infrastructure/middleware"
	"shop_chat_server/internal/service"
	"shop_chat_server/internal/service/chat"
)

// ChatHandler 对话请求处理器
type ChatHandler struct {
	chatSvc service.ChatService
}

// NewChatHandler 创建对话处理器实例
func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// SendMessage 一轮对话
// POST /chat/message
// 请求体: request.ChatMessageRequest，登录用户由 OptionalJWTAuth 注入 user_id
// 响应: respond.ChatMessageRespond
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req request.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.chatSvc.SendMessage(c.Request.Context(), chat.Turn{
		UserID:    middleware.CurrentUserID(c),
		DeviceID:  req.DeviceID,
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
