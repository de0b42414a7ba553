package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"docsec-backend/internal/shared/apperror"
)

// Provider names an external model vendor.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

const (
	// MaxContentChars is the number of leading characters of a document sent to a
	// provider. Anything past it is dropped silently.
	MaxContentChars = 50000
	// MaxOutputTokens is requested from every provider.
	MaxOutputTokens = 4000
	// Temperature is used by providers that accept one in the request.
	Temperature = 0.3
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 60 * time.Second
	// MaxResponseBytes limits how much of a provider response body is read.
	MaxResponseBytes = 10 << 20
)

// Providers lists the supported providers in display order.
func Providers() []Provider {
	return []Provider{ProviderClaude, ProviderOpenAI, ProviderGemini}
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderClaude, ProviderOpenAI, ProviderGemini:
		return true
	default:
		return false
	}
}

// ParseProvider normalizes raw and rejects unknown providers.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", apperror.Newf(apperror.UnsupportedProvider, "llm", "unsupported provider %q", raw)
	}
	return p, nil
}

// Client is one provider adapter.
type Client interface {
	Provider() Provider
	Analyze(ctx context.Context, content, instruction string) (Response, error)
}

// Response is the raw model output of a successful call.
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// TruncateContent keeps the first MaxContentChars characters of content.
func TruncateContent(content string) string {
	if len(content) <= MaxContentChars {
		return content
	}
	n := 0
	for i := range content {
		if n == MaxContentChars {
			return content[:i]
		}
		n++
	}
	return content
}

// BuildUserMessage joins the instruction and the truncated document.
func BuildUserMessage(instruction, content string) string {
	return instruction + "\n\nDocument content:\n" + TruncateContent(content)
}

// HashPrompt returns a stable fingerprint of a prompt for logging.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
