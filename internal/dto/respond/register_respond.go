package respond

// RegisterRespond 注册响应
type RegisterRespond struct {
	Uuid             string `json:"uuid"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	CreatedAt        string `json:"created_at"`
	MigratedSessions int    `json:"migrated_sessions"`
}
