package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"docsec-backend/internal/llm"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-sonnet-20240229"
	anthropicVersion = "2023-06-01"
	envKey           = "ANTHROPIC_API_KEY"
)

// Config configures the Anthropic Messages adapter.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements llm.Client using the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// New builds a client. An empty APIKey yields a client that reports NotConfigured.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    cfg.Model,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages",
		timeout:  cfg.Timeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if cfg.BaseURL == "" {
		c.endpoint = DefaultBaseURL + "/v1/messages"
	}
	if c.timeout <= 0 {
		c.timeout = llm.DefaultTimeout
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.httpClient = &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.apiKey, TokenType: "Bearer"}),
			Base:   transport,
		},
		Timeout: base.Timeout,
	}
	return c
}

func (c *Client) Provider() llm.Provider { return llm.ProviderClaude }

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Timeout is the bound applied to each Analyze call.
func (c *Client) Timeout() time.Duration { return c.timeout }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends one user message containing instruction and content.
func (c *Client) Analyze(ctx context.Context, content, instruction string) (llm.Response, error) {
	if !c.Configured() {
		return llm.Response{}, llm.NotConfigured(llm.ProviderClaude, envKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: llm.MaxOutputTokens,
		Messages:  []message{{Role: "user", Content: llm.BuildUserMessage(instruction, content)}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	status, body, err := llm.PostJSON(ctx, c.httpClient, llm.ProviderClaude, c.endpoint, headers, reqBody)
	if err != nil {
		return llm.Response{}, err
	}
	if status >= http.StatusBadRequest {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		return llm.Response{}, llm.ClassifyStatus(llm.ProviderClaude, status, apiErr.Error.Message)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Response{}, llm.Malformed(llm.ProviderClaude, "decode response: %v", err)
	}
	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return llm.Response{}, llm.Malformed(llm.ProviderClaude, "response has no text content")
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return llm.Response{
		Text:       text.String(),
		Model:      model,
		TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}

var _ llm.Client = (*Client)(nil)
