// Package https_server 创建 Gin 引擎并挂载中间件与路由
package https_server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/config"
	"shop_chat_server/internal/handler"
	"shop_chat_server/internal/infrastructure/logger"
	"shop_chat_server/internal/infrastructure/middleware"
	"shop_chat_server/internal/router"
)

// Init 返回配置完成的 Gin 引擎
// 中间件顺序：日志、panic 恢复、CORS、可选的 TLS 重定向
func Init(conf *config.Config, handlers *handler.Handlers) *gin.Engine {
	if conf.MainConfig.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 由 Nginx 终止 TLS 时保持关闭
	if conf.MainConfig.TLSRedirect {
		engine.Use(middleware.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port, conf.MainConfig.Mode != gin.ReleaseMode))
	}

	router.NewRouter(handlers).RegisterRoutes(engine)
	return engine
}
