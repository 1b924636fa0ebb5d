package request

// RegisterRequest 用户注册
// 带 device_id 时注册成功后把该设备的游客会话迁移到新账号
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"omitempty,email"`
	DeviceID string `json:"device_id"`
}
