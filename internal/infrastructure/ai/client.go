// Package ai 调用外部商品问答 AI 服务
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shop_chat_server/internal/config"
	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/constants"
)

// Reply AI 服务的应答
type Reply struct {
	Response   string            `json:"response"`
	Products   model.ProductList `json:"products"`
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
}

// Responder 对话编排依赖的 AI 能力
type Responder interface {
	SendMessage(ctx context.Context, message, sessionID string) (*Reply, error)
}

type request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Client HTTP 形式的 AI 客户端
type Client struct {
	url          string
	apiKey       string
	fallbackText string
	httpClient   *http.Client
}

// NewClient 按配置创建客户端
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		fallbackText: cfg.FallbackText,
		httpClient:   &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// SendMessage 请求 AI 服务
// 超时、网络错误、非 2xx、响应无法解析时返回兜底回复，同时返回 error 供调用方记录
func (c *Client) SendMessage(ctx context.Context, message, sessionID string) (*Reply, error) {
	reply, err := c.do(ctx, message, sessionID)
	if err != nil {
		zap.L().Error("AI 服务调用失败", zap.String("session_id", sessionID), zap.Error(err))
		return c.Fallback(), err
	}
	zap.L().Info("AI 服务已响应",
		zap.String("session_id", sessionID),
		zap.String("intent", reply.Intent),
		zap.Int("products", len(reply.Products)))
	return reply, nil
}

func (c *Client) do(ctx context.Context, message, sessionID string) (*Reply, error) {
	body, err := json.Marshal(request{Message: message, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ai api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ai api status %d: %s", resp.StatusCode, snippet)
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode ai response: %w", err)
	}
	if reply.Products == nil {
		reply.Products = model.ProductList{}
	}
	return &reply, nil
}

// Fallback 兜底回复
func (c *Client) Fallback() *Reply {
	return &Reply{
		Response: c.fallbackText,
		Products: model.ProductList{},
		Intent:   constants.IntentSystemError,
	}
}

var _ Responder = (*Client)(nil)
