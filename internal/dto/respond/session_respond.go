package respond

import "shop_chat_server/internal/model"

// SessionInfoRespond 会话详情，只带最近若干条消息
type SessionInfoRespond struct {
	SessionID       string            `json:"session_id"`
	UserID          string            `json:"user_id,omitempty"`
	DeviceID        string            `json:"device_id,omitempty"`
	IsAuthenticated bool              `json:"is_authenticated"`
	CreatedAt       string            `json:"created_at"`
	LastActivityAt  string            `json:"last_activity_at"`
	UpgradedAt      string            `json:"upgraded_at,omitempty"`
	MessageCount    int               `json:"message_count"`
	Messages        model.MessageList `json:"messages"`
}

// SessionSummaryRespond 会话列表项
type SessionSummaryRespond struct {
	SessionID       string `json:"session_id"`
	IsAuthenticated bool   `json:"is_authenticated"`
	CreatedAt       string `json:"created_at"`
	LastActivityAt  string `json:"last_activity_at"`
	MessageCount    int    `json:"message_count"`
	LastMessage     string `json:"last_message,omitempty"`
}

// UpgradeSessionRespond 升级结果
type UpgradeSessionRespond struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// MigrateSessionsRespond 迁移结果
type MigrateSessionsRespond struct {
	UserID   string `json:"user_id"`
	Migrated int    `json:"migrated_sessions"`
}
