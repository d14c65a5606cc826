package userprofile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "profile:"

var ErrRedisNotReady = errors.New("redis is not ready")

// RedisStore keeps each profile in a hash "profile:<user id>" mapping
// experiment id to variation id. Every save refreshes the TTL.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store on rdb. A zero ttl keeps profiles forever.
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: defaultKeyPrefix, ttl: ttl}
}

// ConnectRedis parses url, pings the server and retries until ctx expires.
func ConnectRedis(ctx context.Context, url string, attempts int, interval time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if attempts < 1 {
		attempts = 1
	}
	for range attempts {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, ErrRedisNotReady
}

func (r *RedisStore) key(userID string) string { return r.prefix + userID }

func (r *RedisStore) Lookup(ctx context.Context, userID string) (map[string]any, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	profile := New(userID)
	for expID, variationID := range fields {
		profile.SaveDecision(expID, variationID)
	}
	return profile.ToMap(), nil
}

func (r *RedisStore) Save(ctx context.Context, profile map[string]any) error {
	prof, err := FromMap(profile)
	if err != nil {
		return err
	}
	if len(prof.ExperimentBucketMap) == 0 {
		return nil
	}

	values := make(map[string]any, len(prof.ExperimentBucketMap))
	for expID, d := range prof.ExperimentBucketMap {
		values[expID] = d.VariationID
	}
	key := r.key(prof.UserID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save profile: %w", err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, userID string) error {
	if err := r.rdb.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
