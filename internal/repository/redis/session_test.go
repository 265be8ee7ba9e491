package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/voice-agent/internal/config"
	"github.com/Rrens/voice-agent/internal/domain"
)

// newTestClient connects to the Redis named by REDIS_TEST_HOST / REDIS_TEST_PORT
func newTestClient(t *testing.T) *Client {
	t.Helper()

	host := os.Getenv("REDIS_TEST_HOST")
	if host == "" {
		t.Skip("REDIS_TEST_HOST not set, skipping Redis integration test")
	}
	port, _ := strconv.Atoi(os.Getenv("REDIS_TEST_PORT"))
	if port == 0 {
		port = 6379
	}

	client, err := NewClient(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSessionStore_Lifecycle(t *testing.T) {
	client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	id := uuid.NewString()
	session := domain.NewSession(id)
	session.CustomerName = "Alice"

	require.NoError(t, store.Create(ctx, session))
	assert.ErrorIs(t, store.Create(ctx, session), domain.ErrSessionExists)

	require.NoError(t, store.Append(ctx, id, domain.NewAssistantTurn("Hi Alice!", domain.SourceChat)))
	require.NoError(t, store.Append(ctx, id,
		domain.NewUserTurn("Price?"),
		domain.NewAssistantTurn("$499", domain.SourceChat),
	))
	require.NoError(t, store.ReplaceLastAssistant(ctx, id, "$299 on offer", domain.SourceRetrieval))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.CustomerName)
	require.Len(t, got.Turns, 3)
	assert.Equal(t, "Price?", got.Turns[1].Content)
	assert.Equal(t, "$299 on offer", got.Turns[2].Content)
	assert.Equal(t, domain.SourceRetrieval, got.Turns[2].Source)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, store.Append(ctx, id, domain.NewUserTurn("x")), domain.ErrSessionNotFound)
}

func TestSessionStore_AppendDoesNotReviveExpiredSession(t *testing.T) {
	client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, store.Create(ctx, domain.NewSession(id)))
	require.NoError(t, store.Append(ctx, id, domain.NewAssistantTurn("Hi", domain.SourceChat)))

	// simulate the meta hash expiring before the turns list
	require.NoError(t, client.rdb.Del(ctx, metaKey(id)).Err())

	err := store.Append(ctx, id, domain.NewUserTurn("still there?"))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, store.ReplaceLastAssistant(ctx, id, "x", domain.SourceChat), domain.ErrSessionNotFound)

	exists, err := client.rdb.Exists(ctx, metaKey(id)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	turns, err := client.rdb.LLen(ctx, turnsKey(id)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), turns)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.NoError(t, client.rdb.Del(ctx, turnsKey(id)).Err())
}

func TestRateLimiter_Allow(t *testing.T) {
	client := newTestClient(t)
	limiter := NewRateLimiter(client, 2, 1)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	for i := 0; i < 3; i++ {
		allowed, _, _, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}
