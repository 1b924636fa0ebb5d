package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shop_chat_server/internal/config"
	"shop_chat_server/pkg/errorx"
)

// KafkaClient 聊天事件生产者
// 每个主题一个异步 Writer，按 session_id 做 Hash 分区，同一会话的事件落在同一分区
type KafkaClient struct {
	brokers        []string
	cfg            config.KafkaConfig
	requestWriter  *kafka.Writer
	responseWriter *kafka.Writer
}

// NewKafkaClient 创建生产者，不会立即建立连接
func NewKafkaClient(cfg config.KafkaConfig) *KafkaClient {
	brokers := splitBrokers(cfg.HostPort)
	return &KafkaClient{
		brokers:        brokers,
		cfg:            cfg,
		requestWriter:  newWriter(brokers, cfg.RequestTopic, cfg.Timeout),
		responseWriter: newWriter(brokers, cfg.ResponseTopic, cfg.Timeout),
	}
}

func newWriter(brokers []string, topic string, timeoutSeconds time.Duration) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           timeoutSeconds * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
		// 异步写入：WriteMessages 立即返回，结果在 Completion 中记录
		Async: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				zap.L().Error("kafka 投递失败", zap.String("topic", topic), zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
}

func splitBrokers(hostPort string) []string {
	var brokers []string
	for _, b := range strings.Split(hostPort, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// PublishChatRequest 投递用户消息事件
func (k *KafkaClient) PublishChatRequest(ctx context.Context, evt ChatRequestEvent) error {
	return publish(ctx, k.requestWriter, evt.SessionID, evt)
}

// PublishChatResponse 投递 AI 回复事件
func (k *KafkaClient) PublishChatResponse(ctx context.Context, evt ChatResponseEvent) error {
	return publish(ctx, k.responseWriter, evt.SessionID, evt)
}

func publish(ctx context.Context, w *kafka.Writer, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "marshal kafka event")
	}
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return errorx.Wrapf(err, errorx.CodeServerBusy, "kafka write topic %s", w.Topic)
	}
	return nil
}

// CreateTopics 在 controller 节点上创建请求、回复两个主题，已存在时忽略
func (k *KafkaClient) CreateTopics() error {
	if len(k.brokers) == 0 {
		return fmt.Errorf("kafka brokers not configured")
	}
	conn, err := kafka.Dial("tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka %s: %w", k.brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get kafka controller: %w", err)
	}
	ctrlConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer ctrlConn.Close()

	topics := []kafka.TopicConfig{
		{Topic: k.cfg.RequestTopic, NumPartitions: k.cfg.Partition, ReplicationFactor: 1},
		{Topic: k.cfg.ResponseTopic, NumPartitions: k.cfg.Partition, ReplicationFactor: 1},
	}
	if err := ctrlConn.CreateTopics(topics...); err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	zap.L().Info("kafka 主题已就绪", zap.String("request", k.cfg.RequestTopic), zap.String("response", k.cfg.ResponseTopic))
	return nil
}

// Close 刷新缓冲并关闭两个 Writer
func (k *KafkaClient) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{k.requestWriter, k.responseWriter} {
		if err := w.Close(); err != nil {
			zap.L().Error("close kafka writer", zap.String("topic", w.Topic), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

var _ Publisher = (*KafkaClient)(nil)
