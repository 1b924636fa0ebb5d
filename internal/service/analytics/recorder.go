// Package analytics 消费聊天事件并汇总统计
package analytics

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"shop_chat_server/internal/infrastructure/mq"
	"shop_chat_server/pkg/constants"
)

// Stats 统计快照
type Stats struct {
	Requests      int64            `json:"requests"`
	Responses     int64            `json:"responses"`
	Guest         int64            `json:"guest"`
	Authenticated int64            `json:"authenticated"`
	Fallbacks     int64            `json:"fallbacks"`
	Products      int64            `json:"products"`
	Intents       map[string]int64 `json:"intents"`
}

// Recorder 实现 mq.Handler，按意图、身份类型累计
type Recorder struct {
	mu    sync.Mutex
	stats Stats
}

func NewRecorder() *Recorder {
	return &Recorder{stats: Stats{Intents: make(map[string]int64)}}
}

func (r *Recorder) HandleChatRequest(_ context.Context, evt mq.ChatRequestEvent) error {
	r.mu.Lock()
	r.stats.Requests++
	if evt.IsAuthenticated {
		r.stats.Authenticated++
	} else {
		r.stats.Guest++
	}
	r.mu.Unlock()

	zap.L().Info("chat request",
		zap.String("message_id", evt.MessageID),
		zap.String("session_id", evt.SessionID),
		zap.Bool("is_authenticated", evt.IsAuthenticated),
		zap.Int("length", len([]rune(evt.Message))))
	return nil
}

func (r *Recorder) HandleChatResponse(_ context.Context, evt mq.ChatResponseEvent) error {
	intent := evt.Intent
	if intent == "" {
		intent = "unknown"
	}
	r.mu.Lock()
	r.stats.Responses++
	r.stats.Intents[intent]++
	r.stats.Products += int64(len(evt.Products))
	if evt.Intent == constants.IntentSystemError {
		r.stats.Fallbacks++
	}
	r.mu.Unlock()

	zap.L().Info("chat response",
		zap.String("message_id", evt.MessageID),
		zap.String("session_id", evt.SessionID),
		zap.String("intent", intent),
		zap.Float64("confidence", evt.Confidence),
		zap.Int("products", len(evt.Products)))
	return nil
}

// Snapshot 返回当前统计的拷贝
func (r *Recorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.stats
	out.Intents = make(map[string]int64, len(r.stats.Intents))
	for k, v := range r.stats.Intents {
		out.Intents[k] = v
	}
	return out
}

var _ mq.Handler = (*Recorder)(nil)
