package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docsec-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequestFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	router := gin.New()
	router.Use(RequestID(), Identity(), Logging())
	router.POST("/api/v1/documents/:id/analyze", func(c *gin.Context) {
		c.Set("documentId", c.Param("id"))
		c.Set("provider", "openai")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/analyze", nil)
	req.Header.Set("X-Guest-Id", "guest1")
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Header().Get("X-Request-Id") != "req-123" {
		t.Fatalf("request id not echoed")
	}
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", line, err)
	}
	want := map[string]any{
		"msg":         "request.complete",
		"request_id":  "req-123",
		"user_id":     "guest:guest1",
		"document_id": "doc-1",
		"provider":    "openai",
		"is_guest":    true,
		"status":      float64(200),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Fatalf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestRecoveryReturnsStandardError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"code":"internal"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if !strings.Contains(buf.String(), `"msg":"panic"`) {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:3000"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent || resp.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("unexpected preflight response %d %v", resp.Code, resp.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow-origin for unknown origin")
	}
}

func TestRateLimitAnalyzeGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "guest:test-guest")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: func(c *gin.Context) string {
			if c.FullPath() == "/api/v1/documents/:id/analyze" {
				return "ANALYZE"
			}
			return "DEFAULT"
		},
		Limiter: limiter,
		Rules: map[string]RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 10},
			"ANALYZE": {Rate: 0.5, Burst: 2},
		},
	}))
	r.POST("/api/v1/documents/:id/analyze", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/documents", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(method, path string) *httptest.ResponseRecorder {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(method, path, nil))
		return resp
	}

	for i := 0; i < 2; i++ {
		if resp := do(http.MethodPost, "/api/v1/documents/d/analyze"); resp.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, resp.Code)
		}
	}
	resp := do(http.MethodPost, "/api/v1/documents/d/analyze")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "2" {
		t.Fatalf("Retry-After = %q", resp.Header().Get("Retry-After"))
	}
	if resp := do(http.MethodGet, "/api/v1/documents"); resp.Code != http.StatusOK {
		t.Fatalf("default group should be unaffected, got %d", resp.Code)
	}

	now = now.Add(2 * time.Second)
	if resp := do(http.MethodPost, "/api/v1/documents/d/analyze"); resp.Code != http.StatusOK {
		t.Fatalf("expected refill after 2s, got %d", resp.Code)
	}
}
