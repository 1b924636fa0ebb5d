package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer         = "shop_chat"
	SubjectAccess  = "access_token"
	SubjectRefresh = "refresh_token"
)

// ErrNotInitialized Init 之前调用签发/解析
var ErrNotInitialized = errors.New("jwt not initialized")

type settings struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

var cfg *settings

// Init 设置签名密钥和两类 Token 的有效期
func Init(secret string, accessExpiryMinutes, refreshExpiryHours int) {
	cfg = &settings{
		secret:        []byte(secret),
		accessExpiry:  time.Duration(accessExpiryMinutes) * time.Minute,
		refreshExpiry: time.Duration(refreshExpiryHours) * time.Hour,
	}
}

// Claims 自定义声明
// TokenID 仅 Refresh Token 携带，服务端在 Redis 里只保留最新一个，实现单点登录互踢
type Claims struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id,omitempty"`
	jwt.RegisteredClaims
}

func sign(claims Claims) (string, error) {
	if cfg == nil {
		return "", ErrNotInitialized
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.secret)
}

func registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
		Subject:   subject,
	}
}

// GenerateAccessToken 短期 Token，用于接口认证
func GenerateAccessToken(userID string) (string, error) {
	if cfg == nil {
		return "", ErrNotInitialized
	}
	return sign(Claims{UserID: userID, RegisteredClaims: registered(SubjectAccess, cfg.accessExpiry)})
}

// GenerateRefreshToken 长期 Token，同时返回 tokenID
func GenerateRefreshToken(userID string) (tokenString string, tokenID string, err error) {
	if cfg == nil {
		return "", "", ErrNotInitialized
	}
	tokenID = uuid.NewString()
	tokenString, err = sign(Claims{
		UserID:           userID,
		TokenID:          tokenID,
		RegisteredClaims: registered(SubjectRefresh, cfg.refreshExpiry),
	})
	return
}

// RefreshExpiry Refresh Token 有效期，Redis 中 tokenID 的 TTL 与之一致
func RefreshExpiry() time.Duration {
	if cfg == nil {
		return 0
	}
	return cfg.refreshExpiry
}

// ParseToken 校验签名、过期时间与签发方
func ParseToken(tokenString string) (*Claims, error) {
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return cfg.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
