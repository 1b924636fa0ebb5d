package request

// UpgradeSessionRequest 登录后把游客会话升级为用户会话
type UpgradeSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// MigrateSessionsRequest 把设备下全部游客会话迁移到当前用户
type MigrateSessionsRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// ListSessionsRequest 查询会话列表，登录用户忽略 device_id
type ListSessionsRequest struct {
	DeviceID string `form:"device_id"`
}

// LatestSessionRequest 游客恢复最近一次会话
type LatestSessionRequest struct {
	DeviceID string `form:"device_id" binding:"required"`
}
