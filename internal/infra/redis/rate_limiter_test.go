//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockRedisClient struct {
	counts    map[string]int64
	expires   map[string]time.Duration
	IncrErr   error
	ExpireErr error
}

func newMock() *mockRedisClient {
	return &mockRedisClient{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) { return "", Nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	if m.IncrErr != nil {
		return 0, m.IncrErr
	}
	m.counts[key]++
	return m.counts[key], nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.expires[key] = expiration
	return m.ExpireErr
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error { return nil }
func (m *mockRedisClient) Close() error                                  { return nil }

func TestRateLimiterAllow(t *testing.T) {
	ctx := context.Background()
	cli := newMock()
	rl := NewRateLimiter(cli)
	key := UPISubmissionKey("user-1")

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Hour)
		if err != nil || !ok {
			t.Fatalf("attempt %d: expected allowed, got ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Hour)
	if err != nil || ok {
		t.Errorf("expected the 4th attempt to be refused, got ok=%v err=%v", ok, err)
	}
	if cli.expires[key] != time.Hour {
		t.Errorf("expected window to be set on first hit, got %v", cli.expires[key])
	}
}

func TestRateLimiterPropagatesErrors(t *testing.T) {
	cli := newMock()
	cli.IncrErr = errors.New("redis down")
	if _, err := NewRateLimiter(cli).Allow(context.Background(), "k", 1, time.Minute); err == nil {
		t.Fatal("expected the redis error to surface")
	}
}

func TestUPISubmissionLimiterIsPerUser(t *testing.T) {
	ctx := context.Background()
	l := NewUPISubmissionLimiter(NewRateLimiter(newMock()), 1, time.Hour)

	if ok, _ := l.AllowSubmission(ctx, "alice"); !ok {
		t.Fatal("expected alice's first submission to pass")
	}
	if ok, _ := l.AllowSubmission(ctx, "alice"); ok {
		t.Error("expected alice's second submission to be limited")
	}
	if ok, _ := l.AllowSubmission(ctx, "bob"); !ok {
		t.Error("expected a second user to have a separate budget")
	}
}
