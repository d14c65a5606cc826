package userprofile

import (
	"context"
	"errors"
	"testing"
	"time"
)

// blockingService waits for its context to end.
type blockingService struct{}

func (blockingService) Lookup(ctx context.Context, userID string) (map[string]any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingService) Save(ctx context.Context, profile map[string]any) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	svc := WithTimeout(blockingService{}, 10*time.Millisecond)

	if _, err := svc.Lookup(context.Background(), "u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lookup() error = %v, want deadline exceeded", err)
	}
	if err := svc.Save(context.Background(), New("u1").ToMap()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Save() error = %v, want deadline exceeded", err)
	}
}

func TestWithTimeout_PassThrough(t *testing.T) {
	store := NewMemoryStore()
	if got := WithTimeout(store, 0); got != Service(store) {
		t.Error("Expected zero timeout to return the store unchanged")
	}
	if got := WithTimeout(nil, time.Second); got != nil {
		t.Error("Expected nil service to stay nil")
	}

	svc := WithTimeout(store, time.Second)
	p := New("u1")
	p.SaveDecision("e1", "v1")
	if err := svc.Save(context.Background(), p.ToMap()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if m, err := svc.Lookup(context.Background(), "u1"); err != nil || m == nil {
		t.Fatalf("Lookup() = %v, %v", m, err)
	}
}
