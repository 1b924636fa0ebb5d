// chat_consumer 订阅对话主题并统计流量
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shop_chat_server/internal/config"
	"shop_chat_server/internal/infrastructure/logger"
	"shop_chat_server/internal/infrastructure/mq"
	"shop_chat_server/internal/service/analytics"
)

const reportInterval = time.Minute

func main() {
	conf := config.GetConfig()
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()

	admin := mq.NewKafkaClient(conf.KafkaConfig)
	if err := admin.CreateTopics(); err != nil {
		zap.L().Warn("创建 Kafka 主题失败", zap.Error(err))
	}
	_ = admin.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := analytics.NewRecorder()
	consumer := mq.NewConsumer(conf.KafkaConfig, recorder)
	defer func() { _ = consumer.Close() }()

	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := recorder.Snapshot()
				zap.L().Info("chat traffic", zap.Any("snapshot", s))
			}
		}
	}()

	zap.L().Info("chat consumer started",
		zap.String("group", conf.KafkaConfig.ConsumerGroup),
		zap.Strings("topics", []string{conf.KafkaConfig.RequestTopic, conf.KafkaConfig.ResponseTopic}))
	if err := consumer.Run(ctx); err != nil {
		zap.L().Error("consumer stopped", zap.Error(err))
	}
	zap.L().Info("chat consumer exited", zap.Any("snapshot", recorder.Snapshot()))
}
