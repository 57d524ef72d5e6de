package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient wraps the Gemini Developer API client. BaseURL replaces the
// API host only; the SDK appends the version path itself.
type GeminiClient struct {
	client    *genai.Client
	initErr   error
	model     string
	maxTokens int32
}

func newGeminiClient(spec Spec) *GeminiClient {
	model := spec.Model
	if model == "" {
		model = defaultGeminiModel
	}
	c := &GeminiClient{model: model, maxTokens: int32(spec.MaxTokens)}

	// without a key the provider is never called, and NewClient would refuse
	if spec.APIKey == "" {
		return c
	}

	cfg := &genai.ClientConfig{
		APIKey:  spec.APIKey,
		Backend: genai.BackendGeminiAPI,
		// no client timeout: the caller's context bounds every request
		HTTPClient: &http.Client{},
	}
	if spec.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(spec.BaseURL, "/") + "/"
	}
	c.client, c.initErr = genai.NewClient(context.Background(), cfg)
	return c
}

func (c *GeminiClient) config() *genai.GenerateContentConfig {
	if c.maxTokens <= 0 {
		return nil
	}
	return &genai.GenerateContentConfig{MaxOutputTokens: c.maxTokens}
}

func (c *GeminiClient) ready() error {
	if c.initErr != nil {
		return &CallError{Message: "client init: " + c.initErr.Error(), Err: c.initErr}
	}
	if c.client == nil {
		return &CallError{Message: "client not initialised"}
	}
	return nil
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config())
	if err != nil {
		return "", geminiError(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &CallError{Message: "empty response from Gemini"}
	}
	return text, nil
}

func (c *GeminiClient) stream(ctx context.Context, prompt string, emit func(string) bool) error {
	if err := c.ready(); err != nil {
		return err
	}

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), c.config()) {
		if err != nil {
			return geminiError(err)
		}
		if !emit(resp.Text()) {
			return ctx.Err()
		}
	}
	return nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var p *genai.APIError
		if !errors.As(err, &p) {
			return err
		}
		apiErr = *p
	}

	if apiErr.Code == http.StatusTooManyRequests {
		return &CallError{Message: "rate limit exceeded", Err: err}
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = apiErr.Status
	}
	return &CallError{Message: fmt.Sprintf("HTTP %d: %s", apiErr.Code, msg), Err: err}
}
