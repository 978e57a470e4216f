package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.Init("production") })

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.GET("/api/sentiment", func(c *gin.Context) {
		c.Set(SentimentKey, "positive")
		c.JSON(http.StatusOK, gin.H{"sentiment": "positive"})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sentiment?text=good", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "method", "path", "route", "status", "duration_ms", "sentiment", "client_ip"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["msg"] != "request.complete" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["request_id"] != "req-123" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["route"] != "/api/sentiment" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
	if payload["sentiment"] != "positive" {
		t.Fatalf("unexpected sentiment: %v", payload["sentiment"])
	}
	if payload["status"] != float64(http.StatusOK) {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
}

func TestLoggingSkipsOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.Init("production") })

	router := gin.New()
	router.Use(Logging(), CORS(nil))

	req := httptest.NewRequest(http.MethodOptions, "/api/sentiment", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "request.complete") {
		t.Fatalf("expected no access log for OPTIONS, got %s", buf.String())
	}
}
