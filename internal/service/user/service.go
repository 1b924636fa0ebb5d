package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shop_chat_server/internal/dao/mysql/repository"
	"shop_chat_server/internal/dto/request"
	"shop_chat_server/internal/dto/respond"
	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/errorx"
)

// TokenIssuer 登录成功后签发 Token，auth.Service 实现
type TokenIssuer interface {
	IssueTokens(ctx context.Context, userID string) (accessToken, refreshToken string, err error)
}

// SessionMigrator 注册时迁移游客会话
type SessionMigrator interface {
	MigrateDeviceSessions(ctx context.Context, deviceID, userID string) (int, error)
}

// userInfoService 账号业务
type userInfoService struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	sessions SessionMigrator
}

// NewUserService 构造函数
func NewUserService(users repository.UserRepository, tokens TokenIssuer, sessions SessionMigrator) *userInfoService {
	return &userInfoService{users: users, tokens: tokens, sessions: sessions}
}

func formatDate(u *model.UserInfo) string {
	year, month, day := u.CreatedAt.Date()
	return fmt.Sprintf("%d.%d.%d", year, month, day)
}

// checkUsernameExist 用户名已占用时返回 CodeUserExist
func (u *userInfoService) checkUsernameExist(username string) error {
	_, err := u.users.FindByUsername(username)
	if err == nil {
		return errorx.New(errorx.CodeUserExist, "用户名已存在")
	}
	if errorx.GetCode(err) == errorx.CodeNotFound {
		return nil
	}
	zap.L().Error(err.Error())
	return errorx.ErrServerBusy
}

// Register 注册，带 device_id 时把设备上的游客会话迁移到新账号
// 迁移失败不影响注册结果，前端可以稍后调用迁移接口
func (u *userInfoService) Register(ctx context.Context, req request.RegisterRequest) (*respond.RegisterRespond, error) {
	if err := u.checkUsernameExist(req.Username); err != nil {
		return nil, err
	}

	user := &model.UserInfo{
		Uuid:        uuid.NewString(),
		Username:    req.Username,
		Email:       req.Email,
		RawPassword: req.Password,
	}
	if err := u.users.Create(user); err != nil {
		zap.L().Error("创建用户失败", zap.String("username", req.Username), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	rsp := &respond.RegisterRespond{
		Uuid:      user.Uuid,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: formatDate(user),
	}
	if req.DeviceID != "" && u.sessions != nil {
		n, err := u.sessions.MigrateDeviceSessions(ctx, req.DeviceID, user.Uuid)
		if err != nil {
			zap.L().Warn("注册时迁移游客会话失败",
				zap.String("device_id", req.DeviceID), zap.String("user_id", user.Uuid), zap.Error(err))
		}
		rsp.MigratedSessions = n
	}
	return rsp, nil
}

// Login 用户名密码登录
func (u *userInfoService) Login(ctx context.Context, req request.LoginRequest) (*respond.LoginRespond, error) {
	user, err := u.users.FindByUsername(req.Username)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "用户不存在，请注册")
		}
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	if !user.CheckPassword(req.Password) {
		return nil, errorx.New(errorx.CodeInvalidPassword, "密码不正确，请重试")
	}
	if user.Status != 0 {
		return nil, errorx.New(errorx.CodeForbidden, "账号已被禁用")
	}

	access, refresh, err := u.tokens.IssueTokens(ctx, user.Uuid)
	if err != nil {
		return nil, err
	}
	return &respond.LoginRespond{
		Uuid:         user.Uuid,
		Username:     user.Username,
		Email:        user.Email,
		CreatedAt:    formatDate(user),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
