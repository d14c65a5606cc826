package userprofile

import (
	"context"
	"time"
)

// timeoutService bounds every call on the wrapped Service.
type timeoutService struct {
	next    Service
	timeout time.Duration
}

// WithTimeout returns a Service whose Lookup and Save give up after d. A
// non-positive d returns svc unchanged.
func WithTimeout(svc Service, d time.Duration) Service {
	if svc == nil || d <= 0 {
		return svc
	}
	return &timeoutService{next: svc, timeout: d}
}

func (t *timeoutService) Lookup(ctx context.Context, userID string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Lookup(ctx, userID)
}

func (t *timeoutService) Save(ctx context.Context, profile map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Save(ctx, profile)
}
