package userprofile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_SaveAndLookup(t *testing.T) {
	store, mr := setupRedisStore(t, time.Hour)
	ctx := context.Background()

	p := New("u1")
	p.SaveDecision("e1", "v1")
	p.SaveDecision("e2", "v2")
	require.NoError(t, store.Save(ctx, p.ToMap()))

	assert.True(t, mr.Exists("profile:u1"))
	assert.Equal(t, "v1", mr.HGet("profile:u1", "e1"))
	assert.Equal(t, time.Hour, mr.TTL("profile:u1"))

	m, err := store.Lookup(ctx, "u1")
	require.NoError(t, err)
	got, err := FromMap(m)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Len(t, got.ExperimentBucketMap, 2)
	v, ok := got.VariationFor("e2")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestRedisStore_LookupMissing(t *testing.T) {
	store, _ := setupRedisStore(t, 0)
	m, err := store.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRedisStore_NoTTL(t *testing.T) {
	store, mr := setupRedisStore(t, 0)
	p := New("u1")
	p.SaveDecision("e1", "v1")
	require.NoError(t, store.Save(context.Background(), p.ToMap()))
	assert.Equal(t, time.Duration(0), mr.TTL("profile:u1"))
}

func TestRedisStore_ProfileExpires(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()
	p := New("u1")
	p.SaveDecision("e1", "v1")
	require.NoError(t, store.Save(ctx, p.ToMap()))

	mr.FastForward(2 * time.Minute)

	m, err := store.Lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRedisStore_RejectsMalformed(t *testing.T) {
	store, mr := setupRedisStore(t, 0)
	err := store.Save(context.Background(), map[string]any{"user_id": "u1", "experiment_bucket_map": 1})
	assert.ErrorIs(t, err, ErrMalformedProfile)
	assert.False(t, mr.Exists("profile:u1"))
}

func TestRedisStore_Remove(t *testing.T) {
	store, mr := setupRedisStore(t, 0)
	ctx := context.Background()
	p := New("u1")
	p.SaveDecision("e1", "v1")
	require.NoError(t, store.Save(ctx, p.ToMap()))

	require.NoError(t, store.Remove(ctx, "u1"))
	assert.False(t, mr.Exists("profile:u1"))
}

func TestRedisStore_LookupFailsWhenServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), 0)
	defer store.Close()
	mr.Close()

	_, err = store.Lookup(context.Background(), "u1")
	assert.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ConnectRedis(ctx, "redis://"+mr.Addr()+"/0", 2, 10*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(ctx).Err())

	_, err = ConnectRedis(ctx, "not-a-url", 1, time.Millisecond)
	assert.Error(t, err)
}
