package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL points at OpenRouter's OpenAI-compatible API
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// DefaultModel is the completion model used when none is configured
const DefaultModel = "meta-llama/llama-3.1-8b-instruct"

// OpenAIConfig holds the chat completion settings
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
}

// OpenAIGenerator uses an OpenAI-compatible chat completion API
type OpenAIGenerator struct {
	client      *openai.Client
	hasKey      bool
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIGenerator creates a generator. A missing key is not an error here;
// Generate reports it without making a request.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	key := strings.TrimSpace(cfg.APIKey)

	clientConfig := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	} else {
		clientConfig.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		hasKey:      key != "",
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate sends the prompt as a single user message and returns the first choice
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.hasKey {
		return "", ErrMissingKey
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// ModelInfo returns model information
func (g *OpenAIGenerator) ModelInfo() string {
	return "openai-compatible-" + g.model
}
