package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"sentiment-api/internal/shared/server/respond"
)

func newLimitedRouter(limiter Limiter, rules map[string]RateLimitRule, groupFor func(*gin.Context) string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor:     groupFor,
		Limiter:      limiter,
		Rules:        rules,
	}))
	r.GET("/api/sentiment", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sentiment": "neutral"})
	})
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func serve(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRateLimitGroupsAreIndependent(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	groupFor := func(c *gin.Context) string {
		if c.FullPath() == "/api/health" {
			return "PROBES"
		}
		return "DEFAULT"
	}
	r := newLimitedRouter(limiter, map[string]RateLimitRule{
		"DEFAULT": {Rate: 1, Burst: 2},
		"PROBES":  {Rate: 5, Burst: 10},
	}, groupFor)

	for i := 0; i < 3; i++ {
		if resp := serve(r, "/api/health"); resp.Code != http.StatusOK {
			t.Fatalf("probe request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	for i := 0; i < 2; i++ {
		if resp := serve(r, "/api/sentiment?text=a"); resp.Code != http.StatusOK {
			t.Fatalf("default request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	if resp := serve(r, "/api/sentiment?text=a"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("default request 3 expected 429, got %d", resp.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := newLimitedRouter(limiter, map[string]RateLimitRule{"DEFAULT": {Rate: 1, Burst: 1}}, nil)

	if resp := serve(r, "/api/sentiment"); resp.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp.Code)
	}
	resp := serve(r, "/api/sentiment")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if got := resp.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}

	var payload struct {
		Error struct {
			Code    string       `json:"code"`
			Message string       `json:"message"`
			Details RetryDetails `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != respond.CodeRateLimited || payload.Error.Message == "" {
		t.Fatalf("unexpected error body: %+v", payload.Error)
	}
	if payload.Error.Details.RetryAfterMs != 1000 {
		t.Fatalf("expected retryAfterMs 1000, got %d", payload.Error.Details.RetryAfterMs)
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 2, Burst: 1}

	if ok, _, _ := limiter.Allow(context.Background(), "k", rule); !ok {
		t.Fatalf("expected first call allowed")
	}
	ok, wait, _ := limiter.Allow(context.Background(), "k", rule)
	if ok {
		t.Fatalf("expected second call limited")
	}
	if wait != 500*time.Millisecond {
		t.Fatalf("expected 500ms wait, got %s", wait)
	}
	now = now.Add(500 * time.Millisecond)
	if ok, _, _ := limiter.Allow(context.Background(), "k", rule); !ok {
		t.Fatalf("expected call allowed after refill")
	}
}

func TestRateLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 10, Burst: 5}
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		limiter.Allow(ctx, fmt.Sprintf("198.51.100.%d|DEFAULT", i), rule)
	}
	if got := limiter.Len(); got != 1000 {
		t.Fatalf("expected 1000 buckets, got %d", got)
	}

	// Drain one key so it is still refilling when the sweep runs.
	now = now.Add(rateLimitSweepInterval - 10*time.Millisecond)
	for i := 0; i < rule.Burst; i++ {
		limiter.Allow(ctx, "busy|DEFAULT", rule)
	}
	now = now.Add(10 * time.Millisecond)
	if ok, _, _ := limiter.Allow(ctx, "fresh|DEFAULT", rule); !ok {
		t.Fatalf("expected fresh key allowed")
	}
	if got := limiter.Len(); got != 2 {
		t.Fatalf("expected only busy and fresh buckets after sweep, got %d", got)
	}
	if ok, _, _ := limiter.Allow(ctx, "busy|DEFAULT", rule); ok {
		t.Fatalf("expected busy key to keep its drained bucket")
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, RateLimitRule) (bool, time.Duration, error) {
	return false, 0, errors.New("backend down")
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	r := newLimitedRouter(failingLimiter{}, map[string]RateLimitRule{"DEFAULT": {Rate: 1, Burst: 1}}, nil)
	for i := 0; i < 3; i++ {
		if resp := serve(r, "/api/sentiment"); resp.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, resp.Code)
		}
	}
}

func TestRedisRateLimiterSharesBuckets(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	replicaA := NewRedisRateLimiter(client, "test", clock)
	replicaB := NewRedisRateLimiter(client, "test", clock)
	rule := RateLimitRule{Rate: 1, Burst: 2}
	ctx := context.Background()

	if ok, _, err := replicaA.Allow(ctx, "1.2.3.4|DEFAULT", rule); err != nil || !ok {
		t.Fatalf("expected first call allowed, ok=%v err=%v", ok, err)
	}
	if ok, _, err := replicaB.Allow(ctx, "1.2.3.4|DEFAULT", rule); err != nil || !ok {
		t.Fatalf("expected second call allowed, ok=%v err=%v", ok, err)
	}
	ok, wait, err := replicaA.Allow(ctx, "1.2.3.4|DEFAULT", rule)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatalf("expected third call limited across replicas")
	}
	if wait != time.Second {
		t.Fatalf("expected 1s wait, got %s", wait)
	}
	if !mr.Exists("test:1.2.3.4|DEFAULT") {
		t.Fatalf("expected bucket key in redis")
	}

	now = now.Add(time.Second)
	if ok, _, err := replicaB.Allow(ctx, "1.2.3.4|DEFAULT", rule); err != nil || !ok {
		t.Fatalf("expected call allowed after refill, ok=%v err=%v", ok, err)
	}
}

func TestRedisRateLimiterReportsBackendError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	limiter := NewRedisRateLimiter(client, "", nil)
	if _, _, err := limiter.Allow(context.Background(), "k", RateLimitRule{Rate: 1, Burst: 1}); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}
