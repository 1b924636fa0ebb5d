package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shop_chat_server/internal/config"
)

// Consumer 以消费者组订阅请求、回复两个主题
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
}

// NewConsumer 创建消费者
func NewConsumer(cfg config.KafkaConfig, handler Handler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        splitBrokers(cfg.HostPort),
			GroupID:        cfg.ConsumerGroup,
			GroupTopics:    []string{cfg.RequestTopic, cfg.ResponseTopic},
			CommitInterval: cfg.Timeout * time.Second,
			StartOffset:    kafka.LastOffset,
		}),
		handler: handler,
	}
}

// Run 循环拉取消息直到 ctx 结束
// 单条消息解析或处理失败只记日志，照常提交位点，不阻塞后续消息
func (c *Consumer) Run(ctx context.Context) error {
	zap.L().Info("kafka consumer started", zap.Strings("topics", c.reader.Config().GroupTopics))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}
		zap.L().Debug("kafka message received",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		if err := Dispatch(ctx, c.handler, msg.Value); err != nil {
			zap.L().Error("kafka message handle failed",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			zap.L().Error("kafka commit failed", zap.Error(err))
		}
	}
}

// Close 关闭 Reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Dispatch 按消息结构分发：带 message 字段的是用户请求，否则是 AI 回复
func Dispatch(ctx context.Context, handler Handler, value []byte) error {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(value, &shape); err != nil {
		return fmt.Errorf("decode kafka event: %w", err)
	}
	if _, ok := shape["message"]; ok {
		var evt ChatRequestEvent
		if err := json.Unmarshal(value, &evt); err != nil {
			return fmt.Errorf("decode chat request: %w", err)
		}
		return handler.HandleChatRequest(ctx, evt)
	}
	var evt ChatResponseEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		return fmt.Errorf("decode chat response: %w", err)
	}
	return handler.HandleChatResponse(ctx, evt)
}
