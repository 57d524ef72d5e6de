package ai

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openrouter/auto"
)

// OpenRouterClient uses the OpenAI-compatible OpenRouter endpoint, letting
// OpenRouter pick the concrete model.
type OpenRouterClient struct {
	client openai.Client
	model  string
}

func newOpenRouterClient(spec Spec) *OpenRouterClient {
	baseURL := spec.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	model := spec.Model
	if model == "" {
		model = defaultOpenRouterModel
	}

	return &OpenRouterClient{
		client: openai.NewClient(
			option.WithAPIKey(spec.APIKey),
			option.WithBaseURL(baseURL),
			option.WithHeader("X-Title", "meta-ai-router"),
		),
		model: model,
	}
}

func (c *OpenRouterClient) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
}

func (c *OpenRouterClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &CallError{Message: "empty response from model"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenRouterClient) stream(ctx context.Context, prompt string, emit func(string) bool) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(prompt))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if !emit(chunk.Choices[0].Delta.Content) {
			return ctx.Err()
		}
	}
	return stream.Err()
}
