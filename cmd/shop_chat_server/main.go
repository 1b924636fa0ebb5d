package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shop_chat_server/internal/config"
	dao "shop_chat_server/internal/dao/mysql"
	myredis "shop_chat_server/internal/dao/redis"
	"shop_chat_server/internal/handler"
	"shop_chat_server/internal/https_server"
	"shop_chat_server/internal/infrastructure/ai"
	"shop_chat_server/internal/infrastructure/logger"
	"shop_chat_server/internal/infrastructure/mq"
	"shop_chat_server/internal/service"
	"shop_chat_server/internal/service/session"
	"shop_chat_server/pkg/util/jwt"
	"shop_chat_server/pkg/util/snowflake"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()

	// 3. 初始化 Redis，会话存储不可用时无法提供服务
	cache, err := myredis.Init(conf)
	if err != nil {
		zap.L().Fatal("Redis 初始化失败", zap.Error(err))
	}

	// 4. 初始化数据库（用户、订单）
	repos, err := dao.Init(conf)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}

	// 5. Token 与 ID 生成器
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry, conf.JWTConfig.RefreshTokenExpiry)
	snowflake.Init(conf.SnowflakeConfig.MachineID)

	// 6. 消息投递，关闭时使用空实现
	var publisher mq.Publisher = mq.NopPublisher{}
	if conf.KafkaConfig.MessageMode == "kafka" {
		kc := mq.NewKafkaClient(conf.KafkaConfig)
		if err := kc.CreateTopics(); err != nil {
			zap.L().Warn("创建 Kafka 主题失败，继续使用已有主题", zap.Error(err))
		}
		publisher = kc
	}

	// 7. Service 与 Handler 依赖注入
	svc := service.NewServices(service.Deps{
		Conf:      conf,
		Cache:     cache,
		Repos:     repos,
		Responder: ai.NewClient(conf.AIConfig),
		Publisher: publisher,
	})
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("初始化参数校验翻译失败", zap.Error(err))
	}
	engine := https_server.Init(conf, handler.NewHandlers(svc))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 8. 周期清理游客会话
	go session.NewSweeper(svc.Store, cache, conf.SessionConfig.KeepLatest, conf.SweepInterval()).Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zap.L().Info("HTTP 服务启动", zap.String("addr", srv.Addr), zap.String("mode", conf.MainConfig.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdown(shutdownCtx, srv, cache, publisher)
	zap.L().Info("服务器已关闭")
}

type httpShutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown 依次停止接收请求、排空 Redis Worker 队列、关闭消息投递
// Worker 队列里可能还有待投递的事件，publisher 必须最后关闭
func shutdown(ctx context.Context, srv httpShutdowner, cache, publisher io.Closer) {
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("HTTP 服务关闭异常", zap.Error(err))
	}
	if err := cache.Close(); err != nil {
		zap.L().Error("Redis 关闭异常", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		zap.L().Error("消息投递关闭异常", zap.Error(err))
	}
}
