package request

// ChatMessageRequest 发送一轮对话
// 游客必须带 device_id；登录用户身份来自 Token，session_id 为空时新建会话
type ChatMessageRequest struct {
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required,max=4000"`
}
