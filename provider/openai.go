package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAIMaxTokens = 256
)

// OpenAIConfig holds configuration for the OpenAI-compatible backend. Any
// server speaking the Chat Completions API works via BaseURL.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
}

// OpenAIGenerator implements Generator using the Chat Completions API.
type OpenAIGenerator struct {
	config OpenAIConfig
}

// NewOpenAI creates an OpenAI-compatible backend with the given config.
func NewOpenAI(cfg OpenAIConfig) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultOpenAIMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &OpenAIGenerator{config: cfg}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Generate sends one non-streaming chat completion and returns the first
// choice's text.
func (g *OpenAIGenerator) Generate(ctx context.Context, persona, situation string) (string, error) {
	reqBody := openaiRequest{
		Model:     g.config.Model,
		MaxTokens: g.config.MaxTokens,
		Messages: []openaiMessage{
			{Role: "system", Content: persona},
			{Role: "user", Content: situation},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.config.HTTPClient.Do(req)
	if err != nil {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if apiResp.Error != nil {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("%s: %s", apiResp.Error.Type, apiResp.Error.Message)}
	}
	if len(apiResp.Choices) == 0 {
		return "", &GenerationError{Backend: g.Name(), Err: fmt.Errorf("empty choices")}
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}
