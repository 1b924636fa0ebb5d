package constants

const (
	SESSION_TTL_SECONDS        = 1800 // 会话默认过期时间（秒）
	MAX_SESSION_MESSAGES       = 50   // 单个会话保留的最大消息条数
	DEVICE_KEEP_LATEST         = 5    // 每个设备保留的最近会话数
	SESSION_INFO_MESSAGES      = 20   // 会话详情接口返回的消息条数
	RATE_LIMIT_MAX_REQUESTS    = 10   // 限流窗口内最大请求数
	RATE_LIMIT_WINDOW_SECONDS  = 60   // 限流窗口（秒）
	REFRESH_TOKEN_EXPIRY_HOURS = 168  // Refresh Token 有效期（小时），168小时 = 7天
)

// Redis 键前缀
const (
	SessionKeyPrefix        = "session:"
	DeviceSessionsKeyPrefix = "device_sessions:"
	UserSessionsKeyPrefix   = "user_sessions:"
	RateLimitKeyPrefix      = "ratelimit:"
	UserTokenKeyPrefix      = "user_token:"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// IntentSystemError AI 服务不可用时的兜底意图
const IntentSystemError = "system_error"
