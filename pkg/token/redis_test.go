package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(&RedisConfig{Addr: mr.Addr(), Key: "test:session", TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := newTestRedisStore(t, 0)
	runStoreContract(t, store)
}

func TestRedisStore_SingleKey(t *testing.T) {
	store, mr := newTestRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.SetTokens(ctx, Pair{Access: "a", Refresh: "r"}))
	assert.Equal(t, []string{"test:session"}, mr.Keys())

	raw, err := mr.Get("test:session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"access":"a","refresh":"r"}`, raw)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.SetTokens(ctx, Pair{Access: "a", Refresh: "r"}))
	assert.Equal(t, time.Minute, mr.TTL("test:session"))

	mr.FastForward(2 * time.Minute)
	_, ok := store.Tokens(ctx)
	assert.False(t, ok)
}

func TestRedisStore_CorruptValueReadsAsAbsent(t *testing.T) {
	store, mr := newTestRedisStore(t, 0)
	require.NoError(t, mr.Set("test:session", "{not json"))

	assert.Equal(t, "", store.AccessToken(context.Background()))
}

func TestRedisStore_UnavailableReadsAsAbsent(t *testing.T) {
	store, mr := newTestRedisStore(t, 0)
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, Pair{Access: "a", Refresh: "r"}))

	mr.Close()
	assert.Equal(t, "", store.AccessToken(ctx))
	assert.Error(t, store.SetTokens(ctx, Pair{Access: "b", Refresh: "r"}))
}

func TestNewRedisStore_ConnectFailure(t *testing.T) {
	_, err := NewRedisStore(&RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewRedisStoreWithClient_DefaultKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "", 0)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.SetTokens(context.Background(), Pair{Access: "a"}))
	assert.True(t, mr.Exists(DefaultRedisConfig().Key))
}
