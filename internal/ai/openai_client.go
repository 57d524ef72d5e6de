package ai

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAIClient(spec Spec) *OpenAIClient {
	cfg := openai.DefaultConfig(spec.APIKey)
	if spec.BaseURL != "" {
		cfg.BaseURL = spec.BaseURL
	}

	model := spec.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := spec.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *OpenAIClient) request(prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(prompt, false))
	if err != nil {
		return "", openAIError(err)
	}

	if len(resp.Choices) == 0 {
		log.Println("[ai] openai: empty choices")
		return "", &CallError{Message: "empty response from OpenAI"}
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) stream(ctx context.Context, prompt string, emit func(string) bool) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(prompt, true))
	if err != nil {
		return openAIError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return openAIError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if !emit(resp.Choices[0].Delta.Content) {
			return ctx.Err()
		}
	}
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &CallError{Message: "rate limit exceeded", Err: err}
		}
		return &CallError{Message: apiErr.Message, Err: err}
	}
	return err
}
