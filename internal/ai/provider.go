package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Vovarama1992/meta-ai-router/internal/classify"
)

// Kind selects the provider implementation. The set is closed: NewProvider
// rejects anything else.
type Kind string

const (
	KindGemini     Kind = "gemini"
	KindOpenAI     Kind = "openai"
	KindClaude     Kind = "claude"
	KindOpenRouter Kind = "openrouter"
	KindLocalEcho  Kind = "local_echo"
	KindCustom     Kind = "custom"
)

// Spec is the static configuration a provider is built from.
type Spec struct {
	Kind        Kind
	ID          string
	DisplayName string
	Strengths   []classify.Category
	Quality     float64

	// APIKey is resolved from APIKeyEnv by the config layer.
	APIKey    string
	APIKeyEnv string
	Model     string
	BaseURL   string
	MaxTokens int

	// RatePerMinute caps outgoing calls; 0 means unlimited.
	RatePerMinute float64

	// Call backs a KindCustom provider.
	Call CallFunc
}

// backend is the per-kind network client.
type backend interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// streamer is implemented by backends that can emit partial output. emit
// returns false when the consumer is gone.
type streamer interface {
	stream(ctx context.Context, prompt string, emit func(string) bool) error
}

// Provider binds a Descriptor to its call capability.
type Provider struct {
	desc      Descriptor
	kind      Kind
	backend   backend
	configErr error
	limiter   *rate.Limiter
}

// NewProvider builds the provider variant named by spec.Kind. A missing
// credential is not an error here: the provider is returned and every call
// fails with a *NotConfiguredError.
func NewProvider(spec Spec) (*Provider, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return nil, errors.New("provider id is required")
	}
	if spec.Quality < 0 || spec.Quality > 1 {
		return nil, fmt.Errorf("provider %s: quality %.2f outside [0,1]", spec.ID, spec.Quality)
	}
	for _, s := range spec.Strengths {
		if !s.Valid() {
			return nil, fmt.Errorf("provider %s: unknown strength %q", spec.ID, s)
		}
	}
	if spec.DisplayName == "" {
		spec.DisplayName = spec.ID
	}

	p := &Provider{
		desc: Descriptor{
			ID:          spec.ID,
			DisplayName: spec.DisplayName,
			Strengths:   append([]classify.Category(nil), spec.Strengths...),
			Quality:     spec.Quality,
		},
		kind: spec.Kind,
	}

	needsKey := true
	switch spec.Kind {
	case KindGemini:
		p.backend = newGeminiClient(spec)
	case KindOpenAI:
		p.backend = newOpenAIClient(spec)
	case KindClaude:
		p.backend = newClaudeClient(spec)
	case KindOpenRouter:
		p.backend = newOpenRouterClient(spec)
	case KindLocalEcho:
		p.backend = localEcho{}
		needsKey = false
	case KindCustom:
		if spec.Call == nil {
			return nil, fmt.Errorf("provider %s: custom provider needs a call function", spec.ID)
		}
		p.backend = customBackend(spec.Call)
		needsKey = false
	default:
		return nil, fmt.Errorf("provider %s: unknown kind %q", spec.ID, spec.Kind)
	}

	if needsKey && spec.APIKey == "" {
		p.configErr = &NotConfiguredError{Provider: providerLabel(spec.DisplayName), EnvVar: spec.APIKeyEnv}
	}

	if spec.RatePerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(spec.RatePerMinute/60), 1)
	}

	return p, nil
}

func (p *Provider) Descriptor() Descriptor { return p.desc.clone() }

func (p *Provider) ID() string { return p.desc.ID }

func (p *Provider) Kind() Kind { return p.kind }

// Configured reports whether calls can reach the backend at all.
func (p *Provider) Configured() bool { return p.configErr == nil }

// Call sends prompt to the backend. It never panics or returns an error
// separately: every failure is a failed Outcome.
func (p *Provider) Call(ctx context.Context, prompt string) Outcome {
	if p.configErr != nil {
		return Failed(p.configErr)
	}
	if err := p.wait(ctx); err != nil {
		return Failed(p.wrap(err))
	}

	text, err := p.backend.complete(ctx, prompt)
	if err != nil {
		log.Printf("[ai] %s call failed: %v", p.desc.ID, err)
		return Failed(p.wrap(err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Failed(&CallError{Provider: providerLabel(p.desc.DisplayName), Message: "empty response"})
	}
	return Succeeded(text)
}

// Stream emits the response incrementally, in the order the backend produced
// it. The channel is closed after the last chunk; a failure is delivered as a
// final chunk with Err set. Cancelling ctx stops the producer.
func (p *Provider) Stream(ctx context.Context, prompt string) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if p.configErr != nil {
			send(Chunk{Err: p.configErr})
			return
		}
		if err := p.wait(ctx); err != nil {
			send(Chunk{Err: p.wrap(err)})
			return
		}

		if s, ok := p.backend.(streamer); ok {
			emitted := false
			err := s.stream(ctx, prompt, func(text string) bool {
				if text == "" {
					return true
				}
				emitted = true
				return send(Chunk{Text: text})
			})
			if err == nil && !emitted {
				err = &CallError{Provider: providerLabel(p.desc.DisplayName), Message: "empty response"}
			}
			if err != nil {
				log.Printf("[ai] %s stream failed: %v", p.desc.ID, err)
				send(Chunk{Err: p.wrap(err)})
			}
			return
		}

		// No native streaming: call once and replay word by word.
		outcome := p.Call(ctx, prompt)
		if !outcome.Success {
			send(Chunk{Err: outcome.Err})
			return
		}
		words := strings.Fields(outcome.Response)
		for i, w := range words {
			if i < len(words)-1 {
				w += " "
			}
			if !send(Chunk{Text: w}) {
				return
			}
		}
	}()

	return out
}

func (p *Provider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *Provider) wrap(err error) error {
	var nc *NotConfiguredError
	var ce *CallError
	switch {
	case errors.As(err, &nc), errors.As(err, &ce):
		if ce != nil && ce.Provider == "" {
			ce.Provider = providerLabel(p.desc.DisplayName)
		}
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &CallError{Provider: providerLabel(p.desc.DisplayName), Message: "request timeout", Err: err}
	case errors.Is(err, context.Canceled):
		return &CallError{Provider: providerLabel(p.desc.DisplayName), Message: "request cancelled", Err: err}
	default:
		return &CallError{Provider: providerLabel(p.desc.DisplayName), Err: err}
	}
}

// providerLabel drops the parenthesised vendor suffix: "Gemini (Google)" -> "Gemini".
func providerLabel(name string) string {
	if i := strings.Index(name, " ("); i > 0 {
		return name[:i]
	}
	return name
}

type customBackend CallFunc

func (c customBackend) complete(ctx context.Context, prompt string) (string, error) {
	return c(ctx, prompt)
}
