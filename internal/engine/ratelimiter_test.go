package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestLimiter(t *testing.T, window time.Duration) (*IngestLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewIngestLimiter(client, window, logger), mr
}

func TestIngestLimiter_AllowsWithinLimit(t *testing.T) {
	l, _ := setupTestLimiter(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !l.Allow(ctx, "10.0.0.1", 5) {
			t.Errorf("request %d should be allowed (limit=5)", i+1)
		}
	}
}

func TestIngestLimiter_BlocksOverLimit(t *testing.T) {
	l, _ := setupTestLimiter(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Allow(ctx, "10.0.0.1", 3)
	}

	if l.Allow(ctx, "10.0.0.1", 3) {
		t.Error("request should be blocked when over limit")
	}
}

func TestIngestLimiter_WindowSlides(t *testing.T) {
	l, _ := setupTestLimiter(t, time.Minute)
	ctx := context.Background()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		l.Allow(ctx, "10.0.0.1", 2)
	}
	if l.Allow(ctx, "10.0.0.1", 2) {
		t.Fatal("limit should be exhausted within the window")
	}

	// Once the earlier requests age out of the window, capacity returns
	clock = clock.Add(61 * time.Second)
	if !l.Allow(ctx, "10.0.0.1", 2) {
		t.Error("request should be allowed after the window slides past old entries")
	}
}

func TestIngestLimiter_ZeroLimitAllowsAll(t *testing.T) {
	l, _ := setupTestLimiter(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !l.Allow(ctx, "10.0.0.1", 0) {
			t.Errorf("request %d should be allowed with limit=0 (unlimited)", i+1)
		}
	}
}

func TestIngestLimiter_IsolationBetweenSources(t *testing.T) {
	l, _ := setupTestLimiter(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		l.Allow(ctx, "10.0.0.1", 2)
	}

	if l.Allow(ctx, "10.0.0.1", 2) {
		t.Error("exhausted source should be blocked")
	}

	// Limits are tracked per source address
	if !l.Allow(ctx, "10.0.0.2", 2) {
		t.Error("other sources should be unaffected")
	}
}

func TestIngestLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	l, mr := setupTestLimiter(t, time.Minute)
	ctx := context.Background()

	mr.Close()

	if !l.Allow(ctx, "10.0.0.1", 1) {
		t.Error("limiter should fail open when redis is unreachable")
	}
}
