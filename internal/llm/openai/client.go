package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docsec-backend/internal/llm"
)

const (
	DefaultModel = "gpt-4"
	envKey       = "OPENAI_API_KEY"
)

// Config configures the chat completions adapter.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey  string
	model   string
	timeout time.Duration
	api     *openai.Client
}

// New builds a client. An empty APIKey yields a client that reports NotConfigured.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = llm.DefaultTimeout
	}

	apiCfg := openai.DefaultConfig(c.apiKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	apiCfg.HTTPClient = &http.Client{Transport: llm.LimitTransport(base.Transport), Timeout: base.Timeout}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

func (c *Client) Provider() llm.Provider { return llm.ProviderOpenAI }

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Timeout is the bound applied to each Analyze call.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Analyze sends the fixed system persona and one user message.
func (c *Client) Analyze(ctx context.Context, content, instruction string) (llm.Response, error) {
	if !c.Configured() {
		return llm.Response{}, llm.NotConfigured(llm.ProviderOpenAI, envKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.SystemPersona()},
			{Role: openai.ChatMessageRoleUser, Content: llm.BuildUserMessage(instruction, content)},
		},
		MaxTokens:   llm.MaxOutputTokens,
		Temperature: llm.Temperature,
	})
	if err != nil {
		return llm.Response{}, classify(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return llm.Response{}, llm.Malformed(llm.ProviderOpenAI, "response missing choices")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return llm.Response{}, llm.Malformed(llm.ProviderOpenAI, "response has empty content")
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return llm.Response{Text: text, Model: model, TokensUsed: resp.Usage.TotalTokens}, nil
}

func classify(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(llm.ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return llm.ClassifyStatus(llm.ProviderOpenAI, reqErr.HTTPStatusCode, msg)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return llm.Malformed(llm.ProviderOpenAI, "decode response: %v", err)
	}
	return llm.ClassifyTransport(ctx, llm.ProviderOpenAI, err)
}

var _ llm.Client = (*Client)(nil)
