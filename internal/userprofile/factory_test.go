package userprofile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewStore_None(t *testing.T) {
	for _, typ := range []string{"", "none"} {
		st, err := NewStore(context.Background(), Options{Type: typ})
		if err != nil || st != nil {
			t.Fatalf("NewStore(%q) = %v, %v; want nil, nil", typ, st, err)
		}
	}
}

func TestNewStore_Memory(t *testing.T) {
	st, err := NewStore(context.Background(), Options{Type: "memory"})
	if err != nil {
		t.Fatalf("NewStore(memory) error = %v", err)
	}
	defer st.Close()
	if _, ok := st.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", st)
	}
}

func TestNewStore_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	st, err := NewStore(context.Background(), Options{Type: "redis", RedisURL: "redis://" + mr.Addr(), TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewStore(redis) error = %v", err)
	}
	defer st.Close()
	if _, ok := st.(*RedisStore); !ok {
		t.Fatalf("expected *RedisStore, got %T", st)
	}
}

func TestNewStore_InvalidPostgresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), Options{Type: "postgres", DSN: "://bad"})
	if err == nil {
		t.Fatal("expected error for invalid DSN")
	}
}

func TestNewStore_Unsupported(t *testing.T) {
	_, err := NewStore(context.Background(), Options{Type: "cassandra"})
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
