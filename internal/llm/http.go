package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"docsec-backend/internal/shared/apperror"
)

// PostJSON sends payload as JSON and returns the status code and the body, read
// up to MaxResponseBytes. Transport failures are classified for provider.
func PostJSON(ctx context.Context, client *http.Client, provider Provider, url string, headers map[string]string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, ClassifyTransport(ctx, provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, ClassifyTransport(ctx, provider, err)
	}
	return resp.StatusCode, raw, nil
}

// ClassifyTransport maps a failure to reach the provider onto Timeout or Unavailable.
func ClassifyTransport(ctx context.Context, provider Provider, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.ForProvider(apperror.Timeout, string(provider), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperror.ForProvider(apperror.Timeout, string(provider), err)
	}
	return apperror.ForProvider(apperror.Unavailable, string(provider), err)
}

// ClassifyStatus maps a non-2xx provider status onto an error kind.
func ClassifyStatus(provider Provider, status int, message string) error {
	kind := KindForStatus(status)
	if message == "" {
		message = http.StatusText(status)
	}
	return apperror.ForProvider(kind, string(provider), fmt.Errorf("status %d: %s", status, message))
}

// KindForStatus is the shared status mapping used by every adapter.
func KindForStatus(status int) apperror.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperror.Unauthorized
	case status == http.StatusTooManyRequests:
		return apperror.RateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return apperror.Timeout
	default:
		return apperror.Unavailable
	}
}

// Malformed reports an undecodable or empty provider response.
func Malformed(provider Provider, format string, args ...any) error {
	return apperror.ForProvider(apperror.MalformedResponse, string(provider), fmt.Errorf(format, args...))
}

// NotConfigured reports a provider without credentials.
func NotConfigured(provider Provider, envKey string) error {
	return apperror.ForProvider(apperror.NotConfigured, string(provider), fmt.Errorf("%s is not set", envKey))
}

// LimitTransport wraps base so response bodies stop after MaxResponseBytes. It is
// used for SDK clients that read bodies themselves.
func LimitTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return limitedTransport{base: base}
}

type limitedTransport struct {
	base http.RoundTripper
}

func (t limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = limitedBody{Reader: io.LimitReader(resp.Body, MaxResponseBytes), Closer: resp.Body}
	return resp, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}
