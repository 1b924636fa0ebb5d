package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_chat_server/internal/infrastructure/ai"
	"shop_chat_server/internal/infrastructure/mq"
	"shop_chat_server/internal/model"
	"shop_chat_server/internal/service/ratelimit"
	"shop_chat_server/internal/service/session"
	"shop_chat_server/pkg/constants"
	"shop_chat_server/pkg/errorx"
)

const fallbackText = "Xin lỗi, hệ thống AI đang bận."

type fakeResponder struct {
	fn    func(message, sessionID string) (*ai.Reply, error)
	calls int
}

func (f *fakeResponder) SendMessage(_ context.Context, message, sessionID string) (*ai.Reply, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(message, sessionID)
	}
	return &ai.Reply{
		Response:   "echo: " + message,
		Products:   model.ProductList{{"id": "p1"}},
		Intent:     "product_search",
		Confidence: 0.8,
	}, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	requests  []mq.ChatRequestEvent
	responses []mq.ChatResponseEvent
}

func (p *recordingPublisher) PublishChatRequest(_ context.Context, evt mq.ChatRequestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, evt)
	return nil
}

func (p *recordingPublisher) PublishChatResponse(_ context.Context, evt mq.ChatResponseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc       *Service
	store     *session.Store
	mr        *miniredis.Miniredis
	responder *fakeResponder
	publisher *recordingPublisher
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var tick int64
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
	}
	store := session.NewStore(client, session.WithClock(clock))
	limiter := ratelimit.NewLimiter(client).WithClock(func() time.Time { return base })

	if opts.FallbackText == "" {
		opts.FallbackText = fallbackText
	}
	f := &fixture{store: store, mr: mr, responder: &fakeResponder{}, publisher: &recordingPublisher{}}
	f.svc = NewService(store, limiter, f.responder, f.publisher, nil, opts)

	var seq int64
	f.svc.newMessageID = func() string { return fmt.Sprintf("m%d", atomic.AddInt64(&seq, 1)) }
	return f
}

func TestSendMessageGuestFirstTurn(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	resp, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", Message: "áo khoác"})
	require.NoError(t, err)
	assert.True(t, resp.SessionCreated)
	assert.False(t, resp.IsAuthenticated)
	assert.Equal(t, "d1", resp.DeviceID)
	assert.Empty(t, resp.UserID)
	assert.Equal(t, "echo: áo khoác", resp.AIResponse)
	assert.Equal(t, "product_search", resp.Intent)
	assert.Equal(t, "m1", resp.MessageID)

	sess, err := f.store.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, constants.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "m1", sess.Messages[0].MessageID)
	assert.Equal(t, constants.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "product_search", sess.Messages[1].Intent)
	assert.Len(t, sess.Messages[1].Products, 1)

	require.Len(t, f.publisher.requests, 1)
	require.Len(t, f.publisher.responses, 1)
	assert.Equal(t, resp.SessionID, f.publisher.requests[0].SessionID)
	assert.Equal(t, "m1", f.publisher.responses[0].MessageID)
	assert.InDelta(t, 0.8, f.publisher.responses[0].Confidence, 1e-9)
}

func TestSendMessageReusesSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, err := f.svc.SendMessage(ctx, Turn{UserID: "u1", Message: "hi"})
	require.NoError(t, err)
	second, err := f.svc.SendMessage(ctx, Turn{UserID: "u1", SessionID: first.SessionID, Message: "again"})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.False(t, second.SessionCreated)
	assert.True(t, second.IsAuthenticated)

	sess, err := f.store.Get(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 4)
	assert.Equal(t, "u1", sess.UserID)
}

func TestGuestScenarioThenMigrate(t *testing.T) {
	f := newFixture(t, Options{MaxRequests: 100})
	ctx := context.Background()

	var sessionID string
	for i := 0; i < 6; i++ {
		resp, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", SessionID: sessionID, Message: fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
		if sessionID == "" {
			sessionID = resp.SessionID
		}
		require.Equal(t, sessionID, resp.SessionID)
	}

	list, err := f.svc.ListSessions(ctx, "", "d1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	sess, err := f.store.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 12)
	for i, msg := range sess.Messages {
		if i%2 == 0 {
			assert.Equal(t, constants.RoleUser, msg.Role)
			assert.Equal(t, fmt.Sprintf("q%d", i/2), msg.Content)
		} else {
			assert.Equal(t, constants.RoleAssistant, msg.Role)
		}
	}

	migrated, err := f.svc.MigrateDeviceSessions(ctx, "d1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, migrated.Migrated)

	sess, err = f.store.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.True(t, sess.IsAuthenticated)

	byUser, err := f.svc.ListSessions(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, sessionID, byUser[0].SessionID)

	byDevice, err := f.svc.ListSessions(ctx, "", "d1")
	require.NoError(t, err)
	require.Len(t, byDevice, 1)
	assert.Equal(t, sessionID, byDevice[0].SessionID)

	// 迁移后用户身份可以继续使用该会话
	resp, err := f.svc.SendMessage(ctx, Turn{UserID: "u1", SessionID: sessionID, Message: "logged in"})
	require.NoError(t, err)
	assert.False(t, resp.SessionCreated)
}

func TestSendMessageInvalidIdentity(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.SendMessage(context.Background(), Turn{Message: "hi"})
	assert.Equal(t, errorx.CodeInvalidIdentity, errorx.GetCode(err))
	assert.Zero(t, f.responder.calls)
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newFixture(t, Options{MaxRequests: 3, WindowSeconds: 60})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", Message: "hi"})
		require.NoError(t, err)
	}
	_, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", Message: "hi"})
	assert.True(t, errorx.IsRateLimited(err))
	assert.Equal(t, 3, f.responder.calls)

	// 其他身份不受影响
	_, err = f.svc.SendMessage(ctx, Turn{DeviceID: "d2", Message: "hi"})
	assert.NoError(t, err)
}

func TestSendMessageExpiredSessionID(t *testing.T) {
	f := newFixture(t, Options{})
	resp, err := f.svc.SendMessage(context.Background(), Turn{DeviceID: "d1", SessionID: "gone", Message: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.SessionCreated)
	assert.NotEqual(t, "gone", resp.SessionID)
}

func TestSendMessageForeignSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", Message: "hi"})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, Turn{DeviceID: "d2", SessionID: first.SessionID, Message: "hi"})
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))
	_, err = f.svc.SendMessage(ctx, Turn{UserID: "u1", SessionID: first.SessionID, Message: "hi"})
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))
}

func TestSendMessageAIFallback(t *testing.T) {
	f := newFixture(t, Options{})
	f.responder.fn = func(string, string) (*ai.Reply, error) {
		return nil, errors.New("timeout")
	}

	resp, err := f.svc.SendMessage(context.Background(), Turn{DeviceID: "d1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, fallbackText, resp.AIResponse)
	assert.Equal(t, constants.IntentSystemError, resp.Intent)
	assert.NotNil(t, resp.Products)

	sess, err := f.store.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, fallbackText, sess.Messages[1].Content)
}

func TestSendMessageSessionExpiresMidTurn(t *testing.T) {
	f := newFixture(t, Options{})
	f.responder.fn = func(message, sessionID string) (*ai.Reply, error) {
		// AI 处理期间会话过期
		f.mr.Del("session:" + sessionID)
		return &ai.Reply{Response: "late answer"}, nil
	}

	resp, err := f.svc.SendMessage(context.Background(), Turn{DeviceID: "d1", Message: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.SessionCreated)

	sess, err := f.store.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "late answer", sess.Messages[0].Content)
	assert.Equal(t, "d1", sess.DeviceID)
	assert.Equal(t, resp.SessionID, f.publisher.responses[0].SessionID)
}

func TestSendMessageGuestCleanup(t *testing.T) {
	f := newFixture(t, Options{KeepLatest: 5})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.store.Create(ctx, model.DeviceIdentity("d1"), "")
		require.NoError(t, err)
	}
	_, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", Message: "hi"})
	require.NoError(t, err)

	sessions, err := f.store.GetByDevice(ctx, "d1")
	require.NoError(t, err)
	// 清理先于本轮建会话执行：7 → 5，再加上新会话
	assert.Len(t, sessions, 6)
}

func TestSessionOperations(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	guest, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", Message: "hi"})
	require.NoError(t, err)

	info, err := f.svc.GetSessionInfo(ctx, guest.SessionID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, info.MessageCount)
	assert.Equal(t, "d1", info.DeviceID)

	_, err = f.svc.GetSessionInfo(ctx, guest.SessionID, "u1")
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))

	latest, err := f.svc.LatestSession(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, guest.SessionID, latest.SessionID)
	_, err = f.svc.LatestSession(ctx, "nobody")
	assert.True(t, errorx.IsSessionNotFound(err))

	require.NoError(t, f.svc.Heartbeat(ctx, guest.SessionID))
	assert.True(t, errorx.IsSessionNotFound(f.svc.Heartbeat(ctx, "missing")))

	// 删除前必须已归属该用户
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(f.svc.DeleteSession(ctx, guest.SessionID, "u1")))

	up, err := f.svc.UpgradeSession(ctx, guest.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", up.UserID)

	_, err = f.svc.UpgradeSession(ctx, guest.SessionID, "u2")
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))

	info, err = f.svc.GetSessionInfo(ctx, guest.SessionID, "u1")
	require.NoError(t, err)
	assert.True(t, info.IsAuthenticated)
	assert.NotEmpty(t, info.UpgradedAt)

	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(f.svc.DeleteSession(ctx, guest.SessionID, "u2")))
	require.NoError(t, f.svc.DeleteSession(ctx, guest.SessionID, "u1"))
	_, err = f.svc.GetSessionInfo(ctx, guest.SessionID, "u1")
	assert.True(t, errorx.IsSessionNotFound(err))

	_, err = f.svc.ListSessions(ctx, "", "")
	assert.Equal(t, errorx.CodeInvalidIdentity, errorx.GetCode(err))
}

func TestSessionInfoLimitsMessages(t *testing.T) {
	f := newFixture(t, Options{MaxRequests: 100})
	ctx := context.Background()

	var sessionID string
	for i := 0; i < 15; i++ {
		resp, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", SessionID: sessionID, Message: fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
		sessionID = resp.SessionID
	}
	info, err := f.svc.GetSessionInfo(ctx, sessionID, "")
	require.NoError(t, err)
	assert.Equal(t, 30, info.MessageCount)
	require.Len(t, info.Messages, constants.SESSION_INFO_MESSAGES)
	assert.Equal(t, "q14", info.Messages[len(info.Messages)-2].Content)
}

func TestMigrateDoesNotTakeOverAnotherUsersSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, err := f.svc.SendMessage(ctx, Turn{DeviceID: "d1", Message: "giày"})
	require.NoError(t, err)
	_, err = f.svc.UpgradeSession(ctx, first.SessionID, "victim")
	require.NoError(t, err)

	_, err = f.svc.UpgradeSession(ctx, first.SessionID, "attacker")
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))

	rsp, err := f.svc.MigrateDeviceSessions(ctx, "d1", "attacker")
	require.NoError(t, err)
	assert.Zero(t, rsp.Migrated)

	info, err := f.svc.GetSessionInfo(ctx, first.SessionID, "victim")
	require.NoError(t, err)
	assert.Equal(t, "victim", info.UserID)
	_, err = f.svc.GetSessionInfo(ctx, first.SessionID, "attacker")
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))

	mine, err := f.svc.ListSessions(ctx, "attacker", "")
	require.NoError(t, err)
	assert.Empty(t, mine)
}
