package chat

import (
	"context"

	"go.uber.org/zap"

	"shop_chat_server/internal/dto/respond"
	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/constants"
	"shop_chat_server/pkg/errorx"
)

var errNotOwner = errorx.New(errorx.CodeForbidden, "access denied")

// GetSessionInfo 登录用户只能查看自己的会话；游客持有 session_id 即可查看
func (s *Service) GetSessionInfo(ctx context.Context, sessionID, userID string) (*respond.SessionInfoRespond, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && sess.UserID != userID {
		return nil, errNotOwner
	}
	return toSessionInfo(sess), nil
}

// ListSessions 登录用户按用户索引查询，游客按设备索引查询
func (s *Service) ListSessions(ctx context.Context, userID, deviceID string) ([]respond.SessionSummaryRespond, error) {
	var (
		sessions []*model.Session
		err      error
	)
	switch {
	case userID != "":
		sessions, err = s.store.GetByUser(ctx, userID)
	case deviceID != "":
		sessions, err = s.store.GetByDevice(ctx, deviceID)
	default:
		return nil, errorx.ErrInvalidIdentity
	}
	if err != nil {
		return nil, err
	}
	out := make([]respond.SessionSummaryRespond, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionSummary(sess))
	}
	return out, nil
}

// LatestSession 游客恢复最近活跃的会话
func (s *Service) LatestSession(ctx context.Context, deviceID string) (*respond.SessionInfoRespond, error) {
	if deviceID == "" {
		return nil, errorx.ErrInvalidIdentity
	}
	sess, err := s.store.GetLatestByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errorx.Wrapf(errorx.ErrSessionNotFound, errorx.CodeSessionNotFound, "no active session for device %s", deviceID)
	}
	return toSessionInfo(sess), nil
}

// Heartbeat 前端保活，只刷新 TTL
func (s *Service) Heartbeat(ctx context.Context, sessionID string) error {
	ok, err := s.store.ExtendTTL(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return errorx.ErrSessionNotFound
	}
	return nil
}

// UpgradeSession 游客会话升级到当前用户
// 已属于其他用户的会话不允许被转走
func (s *Service) UpgradeSession(ctx context.Context, sessionID, userID string) (*respond.UpgradeSessionRespond, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != "" && sess.UserID != userID {
		return nil, errNotOwner
	}
	upgraded, err := s.store.UpgradeToAuthenticated(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("session upgraded", zap.String("session_id", sessionID), zap.String("user_id", userID))
	return &respond.UpgradeSessionRespond{SessionID: upgraded.SessionID, UserID: upgraded.UserID}, nil
}

// MigrateDeviceSessions 设备下全部会话迁移给用户
func (s *Service) MigrateDeviceSessions(ctx context.Context, deviceID, userID string) (*respond.MigrateSessionsRespond, error) {
	n, err := s.store.MigrateDeviceSessions(ctx, deviceID, userID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("device sessions migrated",
		zap.String("device_id", deviceID), zap.String("user_id", userID), zap.Int("count", n))
	return &respond.MigrateSessionsRespond{UserID: userID, Migrated: n}, nil
}

// DeleteSession 只有会话所属用户可以删除
func (s *Service) DeleteSession(ctx context.Context, sessionID, userID string) error {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return errNotOwner
	}
	if _, err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	return nil
}

func toSessionInfo(sess *model.Session) *respond.SessionInfoRespond {
	return &respond.SessionInfoRespond{
		SessionID:       sess.SessionID,
		UserID:          sess.UserID,
		DeviceID:        sess.DeviceID,
		IsAuthenticated: sess.IsAuthenticated,
		CreatedAt:       sess.CreatedAt,
		LastActivityAt:  sess.LastActivityAt,
		UpgradedAt:      sess.UpgradedAt,
		MessageCount:    len(sess.Messages),
		Messages:        sess.LastMessages(constants.SESSION_INFO_MESSAGES),
	}
}

func toSessionSummary(sess *model.Session) respond.SessionSummaryRespond {
	out := respond.SessionSummaryRespond{
		SessionID:       sess.SessionID,
		IsAuthenticated: sess.IsAuthenticated,
		CreatedAt:       sess.CreatedAt,
		LastActivityAt:  sess.LastActivityAt,
		MessageCount:    len(sess.Messages),
	}
	if n := len(sess.Messages); n > 0 {
		out.LastMessage = sess.Messages[n-1].Content
	}
	return out
}
