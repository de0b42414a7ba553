package claude

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
	client := New(Config{HTTPClient: &http.Client{Transport: rt}})

	_, err := client.Analyze(context.Background(), "content", "instruction")
	if !errors.Is(err, apperror.ErrNotConfigured) {
		t.Fatalf("expected NotConfigured, got %v", err)
	}
	if rt.calls.Load() != 0 {
		t.Fatalf("expected zero network calls, got %d", rt.calls.Load())
	}
}

func TestAnalyzeSendsMessagesRequest(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("x-api-key") != "sk-test" || r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("missing anthropic headers: %v", r.Header)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"claude-3-sonnet-20240229","content":[{"type":"text","text":"Summary: ok"},{"type":"text","text":"\nFinding: none"}],"usage":{"input_tokens":120,"output_tokens":30}}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "sk-test", BaseURL: server.URL})
	doc := strings.Repeat("d", 60000)
	resp, err := client.Analyze(context.Background(), doc, "Review.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Text != "Summary: ok\nFinding: none" || resp.TokensUsed != 150 || resp.Model != DefaultModel {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got.Model != DefaultModel || got.MaxTokens != 4000 || len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("unexpected request: %+v", got)
	}
	want := "Review.\n\nDocument content:\n" + doc[:llm.MaxContentChars]
	if got.Messages[0].Content != want {
		t.Fatalf("content length = %d, want %d", len(got.Messages[0].Content), len(want))
	}
}

func TestAnalyzeStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperror.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, want: apperror.Unauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, want: apperror.RateLimited},
		{name: "overloaded", status: 529, body: `{}`, want: apperror.Unavailable},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, body: ``, want: apperror.Timeout},
		{name: "not json", status: http.StatusOK, body: `<html>`, want: apperror.MalformedResponse},
		{name: "no text", status: http.StatusOK, body: `{"content":[{"type":"tool_use"}]}`, want: apperror.MalformedResponse},
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
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := New(Config{APIKey: "k", BaseURL: server.URL, Timeout: 50 * time.Millisecond}).Analyze(context.Background(), "c", "i")
	if !errors.Is(err, apperror.ErrTimeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("returned before the timeout: %v", elapsed)
	}
}
