// Package model 定义数据实体模型
// 本文件定义存放在 Redis 中的会话模型（session:<id> 的 JSON 值）
package model

import (
	"bytes"
	"encoding/json"
	"time"

	"shop_chat_server/pkg/constants"
)

// TimeLayout 会话内所有时间戳的格式
// 固定宽度的 UTC 微秒格式，字典序即时间序，排序时直接比较字符串
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime 按 TimeLayout 格式化时间（统一转为 UTC）
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// IdentityKind 身份类型
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"   // 已登录用户
	IdentityDevice IdentityKind = "device" // 访客设备
)

// Identity 会话所有者身份，user_id 与 device_id 二选一
type Identity struct {
	Kind IdentityKind
	ID   string
}

// UserIdentity 构造用户身份
func UserIdentity(userID string) Identity {
	return Identity{Kind: IdentityUser, ID: userID}
}

// DeviceIdentity 构造设备身份
func DeviceIdentity(deviceID string) Identity {
	return Identity{Kind: IdentityDevice, ID: deviceID}
}

// Valid 身份类型已知且 ID 非空
func (i Identity) Valid() bool {
	return i.ID != "" && (i.Kind == IdentityUser || i.Kind == IdentityDevice)
}

// IsUser 是否为已登录用户
func (i Identity) IsUser() bool {
	return i.Kind == IdentityUser
}

// String 形如 "user:u1" / "device:d1"，同时作为限流键的身份部分
func (i Identity) String() string {
	return string(i.Kind) + ":" + i.ID
}

// Product AI 推荐的商品，结构由 AI 服务决定，这里不做解释
type Product map[string]any

// UnmarshalJSON 兼容 [] 形式的空对象
func (p *Product) UnmarshalJSON(data []byte) error {
	m, err := decodeLooseObject(data)
	if err != nil {
		return err
	}
	*p = m
	return nil
}

// Context 会话上下文，核心逻辑从不修改
type Context map[string]any

// UnmarshalJSON 兼容 [] 形式的空对象
func (c *Context) UnmarshalJSON(data []byte) error {
	m, err := decodeLooseObject(data)
	if err != nil {
		return err
	}
	*c = m
	return nil
}

// ProductList 商品列表
// Lua cjson 会把空数组编码成 {}，反序列化时按空列表处理
// 会话存储中的商品以 JSON 字符串保存，脚本不会解析其内部结构
type ProductList []Product

// UnmarshalJSON 兼容 {} 形式的空列表和字符串形式的存储编码
func (p *ProductList) UnmarshalJSON(data []byte) error {
	if isEmptyObject(data) {
		*p = ProductList{}
		return nil
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		if encoded == "" {
			*p = ProductList{}
			return nil
		}
		data = []byte(encoded)
	}
	var list []Product
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*p = list
	return nil
}

// Message 会话中的一条消息
type Message struct {
	Role      string      `json:"role"`                 // user / assistant
	Content   string      `json:"content"`              // 消息正文
	Timestamp string      `json:"timestamp"`            // TimeLayout 格式
	Products  ProductList `json:"products,omitempty"`   // AI 推荐商品
	Intent    string      `json:"intent,omitempty"`     // AI 识别的意图
	MessageID string      `json:"message_id,omitempty"` // 消息 ID（雪花算法）
}

// MessageMeta 追加消息时的可选附加字段
type MessageMeta struct {
	Products  ProductList
	Intent    string
	MessageID string
}

// MessageList 消息列表，同样兼容 cjson 的 {} 空数组
type MessageList []Message

// UnmarshalJSON 兼容 {} 形式的空列表
func (m *MessageList) UnmarshalJSON(data []byte) error {
	if isEmptyObject(data) {
		*m = MessageList{}
		return nil
	}
	var list []Message
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*m = list
	return nil
}

// GuestInfo 访客下单时填写的联系信息
type GuestInfo struct {
	DeviceID string `json:"device_id,omitempty"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address" binding:"required"`
	City     string `json:"city" binding:"required"`
	District string `json:"district,omitempty"`
}

// Session 会话记录
type Session struct {
	SessionID       string      `json:"session_id"`
	UserID          string      `json:"user_id,omitempty"`
	DeviceID        string      `json:"device_id,omitempty"` // 访客创建时的设备，升级后保留为原所有者
	IsAuthenticated bool        `json:"is_authenticated"`
	CreatedAt       string      `json:"created_at"`
	LastActivityAt  string      `json:"last_activity_at"`
	UpgradedAt      string      `json:"upgraded_at,omitempty"`
	Messages        MessageList `json:"messages"`
	Context         Context     `json:"context"`
	GuestInfo       *GuestInfo  `json:"guest_info,omitempty"`
}

// NewSession 按所有者构造一条新会话，消息列表为空
func NewSession(sessionID string, owner Identity, now time.Time) *Session {
	ts := FormatTime(now)
	s := &Session{
		SessionID:      sessionID,
		CreatedAt:      ts,
		LastActivityAt: ts,
		Messages:       MessageList{},
		Context:        Context{},
	}
	if owner.IsUser() {
		s.UserID = owner.ID
		s.IsAuthenticated = true
	} else {
		s.DeviceID = owner.ID
	}
	return s
}

// Owner 当前所有者：user_id 已设置即为用户所有，否则归属设备
func (s *Session) Owner() Identity {
	if s.UserID != "" {
		return UserIdentity(s.UserID)
	}
	return DeviceIdentity(s.DeviceID)
}

// OwnedBy 判断会话是否属于给定身份
func (s *Session) OwnedBy(id Identity) bool {
	return s.Owner() == id
}

// LastMessages 返回最近 n 条消息
func (s *Session) LastMessages(n int) MessageList {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// RoleValid 校验消息角色
func RoleValid(role string) bool {
	return role == constants.RoleUser || role == constants.RoleAssistant
}

// Lua 的空 table 编码成 {} 还是 [] 取决于 cjson 实现，两种都当作空值
func isEmptyObject(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("{}"))
}

func decodeLooseObject(data []byte) (map[string]any, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[]")) {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
