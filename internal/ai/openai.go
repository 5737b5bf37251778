package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	chatTimeout     = 60 * time.Second
	chatTemperature = 0.3
	chatMaxTokens   = 300
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint,
// DashScope compatible mode included.
type OpenAIProvider struct {
	name   string
	client *openai.Client
	model  openai.ChatModel
}

// NewOpenAIProvider creates a provider for the given endpoint and model.
// Extra request options are appended after the defaults.
func NewOpenAIProvider(name, apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	return &OpenAIProvider{
		name:   name,
		client: &client,
		model:  openai.ChatModel(model),
	}
}

// Name returns the configured provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Generate sends one system and one user message and returns the reply text.
func (p *OpenAIProvider) Generate(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(chatTemperature),
		MaxTokens:   openai.Int(chatMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s generate: no choices returned", p.name)
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%s generate: empty response", p.name)
	}
	return out, nil
}
