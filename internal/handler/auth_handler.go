package handler

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/dto/request"
	"shop_chat_server/internal/dto/respond"
	"shop_chat_server/internal/infrastructure/middleware"
	"shop_chat_server/internal/service"
)

// AuthHandler 注册、登录与 Token 管理
type AuthHandler struct {
	userSvc service.UserService
	authSvc service.AuthService
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(userSvc service.UserService, authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{userSvc: userSvc, authSvc: authSvc}
}

// Register 注册，带 device_id 时迁移游客会话
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req request.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.userSvc.Register(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Login 用户名密码登录
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req request.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.userSvc.Login(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// RefreshToken 用 Refresh Token 换新的 Access Token
// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req request.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	accessToken, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.RefreshTokenRespond{AccessToken: accessToken})
}

// Logout 作废当前用户的 Refresh Token
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authSvc.Logout(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
