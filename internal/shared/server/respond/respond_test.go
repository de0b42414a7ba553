package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docsec-backend/internal/shared/apperror"
)

func serve(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { Classified(c, err, "failed") })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return resp, body
}

func TestClassifiedMapsKind(t *testing.T) {
	failure := apperror.WithElapsed(apperror.ForProvider(apperror.Timeout, "gemini", errors.New("deadline")), 1500*time.Millisecond)
	resp, body := serve(t, fmt.Errorf("run: %w", failure))

	if resp.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d", resp.Code)
	}
	if body.Error.Code != "timeout" {
		t.Fatalf("code = %q", body.Error.Code)
	}
	details, _ := body.Error.Details.(map[string]any)
	if details["provider"] != "gemini" || details["retryable"] != true || details["processingTimeMs"] != float64(1500) {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestClassifiedHidesUnclassified(t *testing.T) {
	resp, body := serve(t, errors.New("pq: connection refused"))
	if resp.Code != http.StatusInternalServerError || body.Error.Message != "failed" {
		t.Fatalf("unexpected response %d %+v", resp.Code, body)
	}
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"UnsupportedFormat": "unsupported_format",
		"TooShort":          "too_short",
		"Timeout":           "timeout",
	}
	for in, want := range tests {
		if got := snakeCase(in); got != want {
			t.Fatalf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
