package respond

import "shop_chat_server/internal/model"

// ChatMessageRespond 一轮对话的结果
// 前端需要保存 session_id，session_created 为 true 表示原会话已失效并新建
type ChatMessageRespond struct {
	MessageID       string            `json:"message_id"`
	SessionID       string            `json:"session_id"`
	DeviceID        string            `json:"device_id,omitempty"`
	UserID          string            `json:"user_id,omitempty"`
	UserMessage     string            `json:"user_message"`
	AIResponse      string            `json:"ai_response"`
	Products        model.ProductList `json:"products"`
	Intent          string            `json:"intent,omitempty"`
	Timestamp       string            `json:"timestamp"`
	IsAuthenticated bool              `json:"is_authenticated"`
	SessionCreated  bool              `json:"session_created"`
}
