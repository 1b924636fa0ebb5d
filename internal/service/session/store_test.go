package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/errorx"
)

// stepClock 每次调用前进 1ms，保证 last_activity_at 严格递增
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	opts = append([]Option{WithClock(newStepClock().Now)}, opts...)
	return NewStore(client, opts...), mr
}

func TestCreateThenGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	require.NotEmpty(t, created.SessionID)

	got, err := store.Get(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Empty(t, got.Messages)
	assert.Equal(t, model.DeviceIdentity("d1"), got.Owner())
	assert.False(t, got.IsAuthenticated)

	assert.Equal(t, 1800*time.Second, mr.TTL("session:"+created.SessionID))
	members, err := mr.SMembers("device_sessions:d1")
	require.NoError(t, err)
	assert.Equal(t, []string{created.SessionID}, members)
	assert.Equal(t, 1800*time.Second, mr.TTL("device_sessions:d1"))
}

func TestCreateForUserUsesUserIndex(t *testing.T) {
	store, mr := newTestStore(t)

	sess, err := store.Create(context.Background(), model.UserIdentity("u1"), "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", sess.SessionID)
	assert.True(t, sess.IsAuthenticated)
	assert.True(t, mr.Exists("user_sessions:u1"))
	assert.False(t, mr.Exists("device_sessions:"))
}

func TestCreateRejectsInvalidIdentity(t *testing.T) {
	store, mr := newTestStore(t)

	for _, id := range []model.Identity{{}, {Kind: model.IdentityDevice}, {Kind: "robot", ID: "x"}} {
		_, err := store.Create(context.Background(), id, "")
		assert.ErrorIs(t, err, errorx.ErrInvalidIdentity)
	}
	assert.Empty(t, mr.Keys())
}

func TestGetMissingSession(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errorx.IsSessionNotFound(err))
	assert.False(t, errorx.IsStoreUnavailable(err))
}

func TestAddMessageTrimsOldest(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)

	for i := 0; i < 55; i++ {
		require.NoError(t, store.AddMessage(ctx, sess.SessionID, "user", fmt.Sprintf("m%d", i), model.MessageMeta{}))
	}

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 50)
	assert.Equal(t, "m5", got.Messages[0].Content)
	assert.Equal(t, "m54", got.Messages[49].Content)
	assert.Greater(t, got.LastActivityAt, sess.LastActivityAt)
	assert.Equal(t, sess.CreatedAt, got.CreatedAt)

	mr.FastForward(time.Minute)
	require.NoError(t, store.AddMessage(ctx, sess.SessionID, "assistant", "ok", model.MessageMeta{}))
	assert.Equal(t, 1800*time.Second, mr.TTL("session:"+sess.SessionID))
}

func TestAddMessageCustomLimit(t *testing.T) {
	store, _ := newTestStore(t, WithMaxMessages(3))
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddMessage(ctx, sess.SessionID, "user", fmt.Sprintf("m%d", i), model.MessageMeta{}))
	}
	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "m2", got.Messages[0].Content)
}

func TestAddMessageKeepsMeta(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.UserIdentity("u1"), "")
	require.NoError(t, err)

	meta := model.MessageMeta{
		Products:  model.ProductList{{"sku": "TV-55", "name": "Smart TV"}},
		Intent:    "product_search",
		MessageID: "1790000000000000001",
	}
	require.NoError(t, store.AddMessage(ctx, sess.SessionID, "assistant", "Here you go", meta))

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	msg := got.Messages[0]
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "product_search", msg.Intent)
	assert.Equal(t, "1790000000000000001", msg.MessageID)
	require.Len(t, msg.Products, 1)
	assert.Equal(t, "TV-55", msg.Products[0]["sku"])
	assert.Equal(t, got.LastActivityAt, msg.Timestamp)
}

func TestAddMessageKeepsNestedEmptyArrays(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	products := model.ProductList{{"sku": "SHOE-42", "tags": []any{}, "sizes": []any{40.0, 41.0}}}
	require.NoError(t, store.AddMessage(ctx, sess.SessionID, "assistant", "try these", model.MessageMeta{Products: products}))
	require.NoError(t, store.AddMessage(ctx, sess.SessionID, "user", "size 42?", model.MessageMeta{}))

	// 商品在会话文档里是字符串，脚本重新编码会话时不会触碰
	raw, err := mr.Get("session:" + sess.SessionID)
	require.NoError(t, err)
	var doc struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Len(t, doc.Messages, 2)
	assert.IsType(t, "", doc.Messages[0]["products"])
	assert.NotContains(t, doc.Messages[1], "products")

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, products, got.Messages[0].Products)
	assert.Empty(t, got.Messages[1].Products)
}

func TestAddMessageErrors(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	err := store.AddMessage(ctx, "missing", "user", "hi", model.MessageMeta{})
	assert.True(t, errorx.IsSessionNotFound(err))
	assert.False(t, mr.Exists("session:missing"))

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	err = store.AddMessage(ctx, sess.SessionID, "system", "hi", model.MessageMeta{})
	assert.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))
}

func TestAddMessageAfterExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	mr.FastForward(31 * time.Minute)

	err = store.AddMessage(ctx, sess.SessionID, "user", "late", model.MessageMeta{})
	assert.True(t, errorx.IsSessionNotFound(err))
}

func TestConcurrentAppends(t *testing.T) {
	cases := []struct {
		name      string
		initial   int
		writers   int
		perWriter int
	}{
		{name: "below limit", initial: 5, writers: 8, perWriter: 4},
		{name: "over limit", initial: 10, writers: 10, perWriter: 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newTestStore(t)
			ctx := context.Background()

			sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
			require.NoError(t, err)
			for i := 0; i < tc.initial; i++ {
				require.NoError(t, store.AddMessage(ctx, sess.SessionID, "user", fmt.Sprintf("init-%d", i), model.MessageMeta{}))
			}

			var wg sync.WaitGroup
			errs := make(chan error, tc.writers*tc.perWriter)
			for w := 0; w < tc.writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < tc.perWriter; i++ {
						errs <- store.AddMessage(ctx, sess.SessionID, "user", fmt.Sprintf("w%d-%d", w, i), model.MessageMeta{})
					}
				}(w)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := store.Get(ctx, sess.SessionID)
			require.NoError(t, err)

			total := tc.initial + tc.writers*tc.perWriter
			want := total
			if want > 50 {
				want = 50
			}
			require.Len(t, got.Messages, want)

			seen := make(map[string]bool, len(got.Messages))
			lastIndex := make(map[string]int)
			for _, m := range got.Messages {
				assert.False(t, seen[m.Content], "duplicate %s", m.Content)
				seen[m.Content] = true

				// 同一写入方的消息保持提交顺序
				if strings.HasPrefix(m.Content, "w") {
					var w, i int
					_, err := fmt.Sscanf(m.Content, "w%d-%d", &w, &i)
					require.NoError(t, err)
					key := fmt.Sprintf("w%d", w)
					if prev, ok := lastIndex[key]; ok {
						assert.Equal(t, prev+1, i)
					}
					lastIndex[key] = i
				}
			}
			if total <= 50 {
				for w := 0; w < tc.writers; w++ {
					for i := 0; i < tc.perWriter; i++ {
						assert.True(t, seen[fmt.Sprintf("w%d-%d", w, i)])
					}
				}
			}
		})
	}
}

func TestUpgradeIsIdempotent(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	require.NoError(t, store.AddMessage(ctx, sess.SessionID, "user", "hi", model.MessageMeta{}))

	first, err := store.UpgradeToAuthenticated(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "d1", first.DeviceID)
	assert.True(t, first.IsAuthenticated)
	assert.NotEmpty(t, first.UpgradedAt)
	afterFirst, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)

	second, err := store.UpgradeToAuthenticated(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	afterSecond, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)

	assert.Equal(t, afterFirst, afterSecond)
	assert.Equal(t, first.UpgradedAt, second.UpgradedAt)

	members, err := mr.SMembers("user_sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{sess.SessionID}, members)
}

func TestUpgradeToOtherUserOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.UserIdentity("u1"), "")
	require.NoError(t, err)

	upgraded, err := store.UpgradeToAuthenticated(ctx, sess.SessionID, "u2")
	require.NoError(t, err)
	assert.Equal(t, model.UserIdentity("u2"), upgraded.Owner())

	list, err := store.GetByUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sess.SessionID, list[0].SessionID)
}

func TestUpgradeMissingSession(t *testing.T) {
	store, mr := newTestStore(t)

	_, err := store.UpgradeToAuthenticated(context.Background(), "missing", "u1")
	assert.True(t, errorx.IsSessionNotFound(err))
	assert.False(t, mr.Exists("user_sessions:u1"))
}

func TestMigrateDeviceSessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
		require.NoError(t, err)
		ids = append(ids, sess.SessionID)
	}
	_, err := store.Delete(ctx, ids[0])
	require.NoError(t, err)

	n, err := store.MigrateDeviceSessions(ctx, "d1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	userSessions, err := store.GetByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, userSessions, 2)
	for _, s := range userSessions {
		assert.True(t, s.IsAuthenticated)
		assert.Equal(t, "d1", s.DeviceID)
	}

	n, err = store.MigrateDeviceSessions(ctx, "unknown", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMigrateDeviceSessionsKeepsOtherUsersSessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	owned, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	guest, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	_, err = store.UpgradeToAuthenticated(ctx, owned.SessionID, "victim")
	require.NoError(t, err)
	before, err := store.Get(ctx, owned.SessionID)
	require.NoError(t, err)

	n, err := store.MigrateDeviceSessions(ctx, "d1", "attacker")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := store.Get(ctx, owned.SessionID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	moved, err := store.Get(ctx, guest.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "attacker", moved.UserID)

	list, err := store.GetByUser(ctx, "attacker")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, guest.SessionID, list[0].SessionID)

	// 原用户再次迁移只会计入自己已持有的会话
	n, err = store.MigrateDeviceSessions(ctx, "d1", "victim")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	moved, err = store.Get(ctx, guest.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "attacker", moved.UserID)
}

func TestGuestScenarioThenMigrate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		require.NoError(t, store.AddMessage(ctx, sess.SessionID, "user", fmt.Sprintf("q%d", i), model.MessageMeta{}))
		require.NoError(t, store.AddMessage(ctx, sess.SessionID, "assistant", fmt.Sprintf("a%d", i), model.MessageMeta{}))
	}

	byDevice, err := store.GetByDevice(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, byDevice, 1)
	require.Len(t, byDevice[0].Messages, 12)
	for i, m := range byDevice[0].Messages {
		if i%2 == 0 {
			assert.Equal(t, "user", m.Role)
		} else {
			assert.Equal(t, "assistant", m.Role)
		}
	}

	n, err := store.MigrateDeviceSessions(ctx, "d1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	byDevice, err = store.GetByDevice(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, byDevice, 1)
	byUser, err := store.GetByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byUser, 1)

	assert.Equal(t, byDevice[0], byUser[0])
	assert.Equal(t, model.UserIdentity("u1"), byUser[0].Owner())
	assert.True(t, byUser[0].IsAuthenticated)
	assert.Len(t, byUser[0].Messages, 12)
}

func TestSetGuestInfo(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	guest, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)

	info := model.GuestInfo{DeviceID: "d1", Name: "An", Phone: "0901234567", Address: "1 Le Loi", City: "HCM"}
	require.NoError(t, store.SetGuestInfo(ctx, guest.SessionID, info))
	info.Address = "2 Le Loi"
	require.NoError(t, store.SetGuestInfo(ctx, guest.SessionID, info))

	got, err := store.Get(ctx, guest.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.GuestInfo)
	assert.Equal(t, info, *got.GuestInfo)

	user, err := store.Create(ctx, model.UserIdentity("u1"), "")
	require.NoError(t, err)
	err = store.SetGuestInfo(ctx, user.SessionID, info)
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))

	err = store.SetGuestInfo(ctx, "missing", info)
	assert.True(t, errorx.IsSessionNotFound(err))
}

func TestGetByDeviceSkipsDanglingAndSorts(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, model.DeviceIdentity("d1"), "a")
	require.NoError(t, err)
	_, err = store.Create(ctx, model.DeviceIdentity("d1"), "b")
	require.NoError(t, err)
	_, err = store.Create(ctx, model.DeviceIdentity("d1"), "c")
	require.NoError(t, err)

	// a 最近活跃，b 已过期但仍在索引中
	require.NoError(t, store.AddMessage(ctx, a.SessionID, "user", "hi", model.MessageMeta{}))
	mr.Del("session:b")

	list, err := store.GetByDevice(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].SessionID)
	assert.Equal(t, "c", list[1].SessionID)

	latest, err := store.GetLatestByDevice(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "a", latest.SessionID)

	latest, err = store.GetLatestByDevice(ctx, "d2")
	require.NoError(t, err)
	assert.Nil(t, latest)

	empty, err := store.GetByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetDoesNotRefreshTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	mr.FastForward(10 * time.Minute)

	_, err = store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	_, err = store.GetByDevice(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, mr.TTL("session:"+sess.SessionID))
}

func TestExtendTTL(t *testing.T) {
	store, mr := newTestStore(t, WithTTL(10*time.Minute))
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)
	mr.FastForward(5 * time.Minute)

	ok, err := store.ExtendTTL(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Minute, mr.TTL("session:"+sess.SessionID))

	ok, err = store.ExtendTTL(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteLeavesIndex(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, model.DeviceIdentity("d1"), "")
	require.NoError(t, err)

	ok, err := store.Delete(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Delete(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("device_sessions:d1"))
	list, err := store.GetByDevice(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	store := NewStore(client)
	mr.Close()

	ctx := context.Background()
	_, err := store.Get(ctx, "s1")
	assert.True(t, errorx.IsStoreUnavailable(err))
	assert.False(t, errorx.IsSessionNotFound(err))

	err = store.AddMessage(ctx, "s1", "user", "hi", model.MessageMeta{})
	assert.True(t, errorx.IsStoreUnavailable(err))

	_, err = store.Create(ctx, model.DeviceIdentity("d1"), "")
	assert.True(t, errorx.IsStoreUnavailable(err))
}

func TestCanceledContextIsStoreUnavailable(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "s1")
	assert.True(t, errorx.IsStoreUnavailable(err))
}
