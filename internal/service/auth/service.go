// Package auth 签发和刷新 Token
// Redis 中 user_token:<uid> 只保存最近一次登录的 Refresh Token ID，旧设备刷新时会被拒绝
package auth

import (
	"context"

	"go.uber.org/zap"

	myredis "shop_chat_server/internal/dao/redis"
	"shop_chat_server/pkg/constants"
	"shop_chat_server/pkg/errorx"
	"shop_chat_server/pkg/util/jwt"
)

// Service 认证服务
type Service struct {
	cache myredis.CacheService
}

// NewAuthService 创建认证服务
func NewAuthService(cache myredis.CacheService) *Service {
	return &Service{cache: cache}
}

func tokenKey(userID string) string {
	return constants.UserTokenKeyPrefix + userID
}

// IssueTokens 签发一对 Token 并记录 Refresh Token ID
// 记录失败只影响后续刷新，不阻塞登录
func (s *Service) IssueTokens(ctx context.Context, userID string) (accessToken, refreshToken string, err error) {
	accessToken, err = jwt.GenerateAccessToken(userID)
	if err != nil {
		zap.L().Error("生成 Access Token 失败", zap.Error(err))
		return "", "", errorx.ErrServerBusy
	}
	refreshToken, tokenID, err := jwt.GenerateRefreshToken(userID)
	if err != nil {
		zap.L().Error("生成 Refresh Token 失败", zap.Error(err))
		return "", "", errorx.ErrServerBusy
	}
	if err := s.cache.Set(ctx, tokenKey(userID), tokenID, jwt.RefreshExpiry()); err != nil {
		zap.L().Error("存储 Token ID 到 Redis 失败", zap.String("user_id", userID), zap.Error(err))
	}
	return accessToken, refreshToken, nil
}

// ValidateTokenID Token ID 是否为该用户最近一次登录签发的
func (s *Service) ValidateTokenID(ctx context.Context, userID, tokenID string) (bool, error) {
	valid, err := s.cache.Get(ctx, tokenKey(userID))
	if err != nil {
		return false, err
	}
	return valid != "" && valid == tokenID, nil
}

// Refresh 用 Refresh Token 换新的 Access Token
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := jwt.ParseToken(refreshToken)
	if err != nil {
		return "", errorx.New(errorx.CodeUnauthorized, "Refresh Token 已过期或无效，请重新登录")
	}
	if claims.Subject != jwt.SubjectRefresh {
		return "", errorx.New(errorx.CodeUnauthorized, "请使用 Refresh Token")
	}

	ok, err := s.ValidateTokenID(ctx, claims.UserID, claims.TokenID)
	if err != nil {
		zap.L().Error("读取 Token ID 失败", zap.String("user_id", claims.UserID), zap.Error(err))
		return "", errorx.New(errorx.CodeUnauthorized, "登录状态已失效，请重新登录")
	}
	if !ok {
		return "", errorx.New(errorx.CodeUnauthorized, "您的账号已在其他设备登录，请重新登录")
	}

	access, err := jwt.GenerateAccessToken(claims.UserID)
	if err != nil {
		return "", errorx.ErrServerBusy
	}
	return access, nil
}

// Logout 清除 Refresh Token ID，之后所有 Refresh Token 失效
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, tokenKey(userID))
}
