package respond

// LoginRespond 登录响应
type LoginRespond struct {
	Uuid         string `json:"uuid"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	CreatedAt    string `json:"created_at"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenRespond 刷新后的 Access Token
type RefreshTokenRespond struct {
	AccessToken string `json:"access_token"`
}
