package userprofile

import (
	"context"
	"fmt"
	"time"

	mydb "github.com/TimurManjosov/goexperiment/internal/db"
)

// Store is a Service that owns resources.
type Store interface {
	Service
	Remove(ctx context.Context, userID string) error
	Close() error
}

// Options configures NewStore.
type Options struct {
	Type     string // none, memory, postgres, redis
	DSN      string
	RedisURL string
	TTL      time.Duration
}

// NewStore creates the profile store named by opts.Type. The "none" type
// returns a nil Store: sticky bucketing is disabled.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := mydb.NewPool(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		st := NewPostgresStore(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &pooledStore{PostgresStore: st, close: pool.Close}, nil
	case "redis":
		client, err := ConnectRedis(ctx, opts.RedisURL, 3, time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisStore(client, opts.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", opts.Type)
	}
}

// pooledStore closes the pool it was created with.
type pooledStore struct {
	*PostgresStore
	close func()
}

func (p *pooledStore) Close() error {
	p.close()
	return nil
}
