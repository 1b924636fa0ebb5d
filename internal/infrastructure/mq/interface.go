// Package mq 封装聊天事件的 Kafka 投递与消费
// 投递是 fire-and-forget：失败只记日志，不影响对话本身
package mq

import (
	"context"

	"shop_chat_server/internal/model"
)

// ChatRequestEvent 用户消息事件，投递到 chat-requests
type ChatRequestEvent struct {
	MessageID       string `json:"message_id"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id,omitempty"`
	DeviceID        string `json:"device_id,omitempty"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Message         string `json:"message"`
	Timestamp       string `json:"timestamp"`
}

// ChatResponseEvent AI 回复事件，投递到 chat-responses
type ChatResponseEvent struct {
	MessageID  string            `json:"message_id"`
	SessionID  string            `json:"session_id"`
	UserID     string            `json:"user_id,omitempty"`
	DeviceID   string            `json:"device_id,omitempty"`
	Response   string            `json:"response"`
	Products   model.ProductList `json:"products"`
	Intent     string            `json:"intent,omitempty"`
	Confidence float64           `json:"confidence"`
	Timestamp  string            `json:"timestamp"`
}

// Publisher 聊天事件发布接口
// 对话编排只依赖这个接口，kafka 关闭时注入 NopPublisher
type Publisher interface {
	PublishChatRequest(ctx context.Context, evt ChatRequestEvent) error
	PublishChatResponse(ctx context.Context, evt ChatResponseEvent) error
	Close() error
}

// Handler 消费端对两类事件的处理
type Handler interface {
	HandleChatRequest(ctx context.Context, evt ChatRequestEvent) error
	HandleChatResponse(ctx context.Context, evt ChatResponseEvent) error
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

func (NopPublisher) PublishChatRequest(context.Context, ChatRequestEvent) error   { return nil }
func (NopPublisher) PublishChatResponse(context.Context, ChatResponseEvent) error { return nil }
func (NopPublisher) Close() error                                                 { return nil }

var _ Publisher = NopPublisher{}
