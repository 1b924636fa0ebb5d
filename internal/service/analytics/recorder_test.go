package analytics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_chat_server/internal/infrastructure/mq"
	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/constants"
)

func TestRecorderThroughDispatch(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	events := []any{
		mq.ChatRequestEvent{MessageID: "1", SessionID: "s1", DeviceID: "d1", Message: "hi"},
		mq.ChatRequestEvent{MessageID: "2", SessionID: "s2", UserID: "u1", IsAuthenticated: true, Message: "hello"},
		mq.ChatResponseEvent{MessageID: "1", SessionID: "s1", Intent: "greeting"},
		mq.ChatResponseEvent{MessageID: "2", SessionID: "s2", Intent: "product_search", Products: model.ProductList{{"id": "p1"}, {"id": "p2"}}},
		mq.ChatResponseEvent{MessageID: "3", SessionID: "s2", Intent: constants.IntentSystemError},
	}
	for _, evt := range events {
		raw, err := json.Marshal(evt)
		require.NoError(t, err)
		require.NoError(t, mq.Dispatch(ctx, r, raw))
	}

	s := r.Snapshot()
	assert.EqualValues(t, 2, s.Requests)
	assert.EqualValues(t, 3, s.Responses)
	assert.EqualValues(t, 1, s.Guest)
	assert.EqualValues(t, 1, s.Authenticated)
	assert.EqualValues(t, 1, s.Fallbacks)
	assert.EqualValues(t, 2, s.Products)
	assert.EqualValues(t, 1, s.Intents["product_search"])

	s.Intents["greeting"] = 100
	assert.EqualValues(t, 1, r.Snapshot().Intents["greeting"])
}
