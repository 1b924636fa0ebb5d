package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shop_chat_server/pkg/errorx"
	"shop_chat_server/pkg/util/jwt"
)

// ContextUserID 鉴权通过后写入 gin.Context 的键
const ContextUserID = "user_id"

// bearerUserID 从 Authorization 头解析出 Access Token 里的用户，msg 为失败原因
func bearerUserID(c *gin.Context) (userID string, msg string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "请先登录"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Token 格式错误，请使用 Bearer Token"
	}
	claims, err := jwt.ParseToken(parts[1])
	if err != nil {
		return "", "Token 已过期或无效，请重新登录"
	}
	if claims.Subject != jwt.SubjectAccess {
		return "", "请使用 Access Token 访问此接口"
	}
	if claims.UserID == "" {
		return "", "Token 缺少用户信息"
	}
	return claims.UserID, ""
}

// JWTAuth 必须登录
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, msg := bearerUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  msg,
			})
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// OptionalJWTAuth 游客与登录用户共用的接口
// 没有 Token 或 Token 无效都按游客处理
func OptionalJWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, _ := bearerUserID(c); userID != "" {
			c.Set(ContextUserID, userID)
		}
		c.Next()
	}
}

// CurrentUserID 取出已鉴权用户，游客返回空串
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
