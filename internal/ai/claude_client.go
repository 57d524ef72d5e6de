package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-3-5-sonnet-20241022"

type ClaudeClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newClaudeClient(spec Spec) *ClaudeClient {
	opts := []option.RequestOption{option.WithAPIKey(spec.APIKey)}
	if spec.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(spec.BaseURL))
	}

	model := spec.Model
	if model == "" {
		model = defaultClaudeModel
	}
	maxTokens := int64(spec.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 500
	}

	return &ClaudeClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *ClaudeClient) params(prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

func (c *ClaudeClient) complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.params(prompt))
	if err != nil {
		return "", claudeError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (c *ClaudeClient) stream(ctx context.Context, prompt string, emit func(string) bool) error {
	stream := c.client.Messages.NewStreaming(ctx, c.params(prompt))
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
			if !emit(text.Text) {
				return ctx.Err()
			}
		}
	}
	if err := stream.Err(); err != nil {
		return claudeError(err)
	}
	return nil
}

func claudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &CallError{Message: apiErr.Error(), Err: err}
	}
	return err
}
