package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"docsec-backend/internal/llm"
	"docsec-backend/internal/shared/apperror"
)

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected network call")
}

func TestAnalyzeNotConfiguredMakesNoRequest(t *testing.T) {
	rt := &countingTransport{}
	_, err := New(Config{HTTPClient: &http.Client{Transport: rt}}).Analyze(context.Background(), "content", "instruction")
	if !errors.Is(err, apperror.ErrNotConfigured) {
		t.Fatalf("expected NotConfigured, got %v", err)
	}
	if rt.calls.Load() != 0 {
		t.Fatalf("expected zero network calls, got %d", rt.calls.Load())
	}
}

func TestAnalyzeGenerateContent(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Summary: "},{"text":"ok"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":9,"candidatesTokenCount":3,"totalTokenCount":12}}`))
	}))
	defer server.Close()

	resp, err := New(Config{APIKey: "g-key", BaseURL: server.URL}).Analyze(context.Background(), strings.Repeat("z", 60000), "Scan.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Text != "Summary: ok" || resp.TokensUsed != 12 || resp.Model != DefaultModel {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.GenerationConfig.Temperature != 0.3 || got.GenerationConfig.MaxOutputTokens != 4000 {
		t.Fatalf("unexpected generation config %+v", got.GenerationConfig)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected contents %+v", got.Contents)
	}
	if n := len(got.Contents[0].Parts[0].Text); n != len("Scan.\n\nDocument content:\n")+llm.MaxContentChars {
		t.Fatalf("text not truncated: %d", n)
	}
}

func TestAnalyzeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperror.Kind
	}{
		{name: "invalid key", status: http.StatusBadRequest, body: `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, want: apperror.Unauthorized},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"code":400,"message":"Invalid JSON payload","status":"INVALID_ARGUMENT"}}`, want: apperror.Unavailable},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":{"code":403,"status":"PERMISSION_DENIED"}}`, want: apperror.Unauthorized},
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`, want: apperror.RateLimited},
		{name: "empty candidates", status: http.StatusOK, body: `{"candidates":[]}`, want: apperror.MalformedResponse},
		{name: "blocked", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`, want: apperror.MalformedResponse},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(Config{APIKey: "k", BaseURL: server.URL}).Analyze(context.Background(), "c", "i")
			if kind, _ := apperror.KindOf(err); kind != tt.want {
				t.Fatalf("kind = %s, want %s (err=%v)", kind, tt.want, err)
			}
		})
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	_, err := New(Config{APIKey: "k", BaseURL: server.URL, Timeout: 30 * time.Millisecond}).Analyze(context.Background(), "c", "i")
	if !errors.Is(err, apperror.ErrTimeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
}
