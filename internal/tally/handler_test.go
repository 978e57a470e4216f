package tally

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatsHandlerReturnsSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(NewMemoryRepo(), 0, "positive", "neutral")
	_ = svc.Record(context.Background(), "neutral")
	_ = svc.Record(context.Background(), "neutral")

	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sentiment/stats", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var snap Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.Total != 2 {
		t.Fatalf("expected total 2, got %d", snap.Total)
	}
	if len(snap.Tallies) != 2 || snap.Tallies[0].Sentiment != "neutral" || snap.Tallies[0].Count != 2 {
		t.Fatalf("unexpected tallies: %+v", snap.Tallies)
	}
}

func TestStatsHandlerRepoFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(&failingListRepo{}, 0, "positive")

	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sentiment/stats", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
