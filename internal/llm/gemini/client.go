package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docsec-backend/internal/llm"
	"docsec-backend/internal/shared/apperror"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-pro"
	envKey         = "GEMINI_API_KEY"
)

// Config configures the generateContent adapter.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements llm.Client using the Gemini generateContent API. The key is
// passed as a query parameter.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// New builds a client. An empty APIKey yields a client that reports NotConfigured.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = llm.DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

func (c *Client) Provider() llm.Provider { return llm.ProviderGemini }

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Timeout is the bound applied to each Analyze call.
func (c *Client) Timeout() time.Duration { return c.timeout }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Analyze sends instruction and content as a single text part.
func (c *Client) Analyze(ctx context.Context, text, instruction string) (llm.Response, error) {
	if !c.Configured() {
		return llm.Response{}, llm.NotConfigured(llm.ProviderGemini, envKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent?" + url.Values{"key": {c.apiKey}}.Encode()
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: llm.BuildUserMessage(instruction, text)}}}},
		GenerationConfig: generationConfig{
			Temperature:     llm.Temperature,
			MaxOutputTokens: llm.MaxOutputTokens,
		},
	}

	status, body, err := llm.PostJSON(ctx, c.httpClient, llm.ProviderGemini, endpoint, nil, reqBody)
	if err != nil {
		return llm.Response{}, err
	}
	if status >= http.StatusBadRequest {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		// An invalid key is reported as 400 INVALID_ARGUMENT rather than 401.
		if status == http.StatusBadRequest && apiErr.Error.Status == "INVALID_ARGUMENT" &&
			strings.Contains(strings.ToLower(apiErr.Error.Message), "api key") {
			return llm.Response{}, apperror.ForProvider(apperror.Unauthorized, string(llm.ProviderGemini), errors.New(apiErr.Error.Message))
		}
		return llm.Response{}, llm.ClassifyStatus(llm.ProviderGemini, status, apiErr.Error.Message)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Response{}, llm.Malformed(llm.ProviderGemini, "decode response: %v", err)
	}
	if len(parsed.Candidates) == 0 {
		return llm.Response{}, llm.Malformed(llm.ProviderGemini, "response has no candidates")
	}
	var out strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	if strings.TrimSpace(out.String()) == "" {
		return llm.Response{}, llm.Malformed(llm.ProviderGemini, "first candidate has no text (finishReason=%s)", parsed.Candidates[0].FinishReason)
	}

	model := parsed.ModelVersion
	if model == "" {
		model = c.model
	}
	return llm.Response{Text: out.String(), Model: model, TokensUsed: parsed.UsageMetadata.TotalTokenCount}, nil
}

var _ llm.Client = (*Client)(nil)
