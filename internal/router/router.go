package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/classify"
)

// ErrNoProviders is returned when the registry is empty.
var ErrNoProviders = errors.New("no AI providers available")

// Options tunes invocation. The zero value is the base behaviour: only the
// winner is called.
type Options struct {
	// Fallback walks the ranked list until a provider succeeds.
	Fallback bool
}

// Candidate is one provider with its score for a classification.
type Candidate struct {
	Provider *ai.Provider `json:"-"`
	ai.Descriptor
	Score float64 `json:"score"`
}

// Decision is the explainable result of selection.
type Decision struct {
	Winner       Candidate   `json:"winner"`
	Reason       string      `json:"reason"`
	Alternatives []Candidate `json:"alternatives,omitempty"`
}

type Router struct {
	registry *ai.Registry
	opts     Options
}

func New(registry *ai.Registry, opts Options) *Router {
	return &Router{registry: registry, opts: opts}
}

// Descriptors lists the registered providers in registration order.
func (r *Router) Descriptors() []ai.Descriptor { return r.registry.Descriptors() }

// Rank scores every provider and orders them best first: score, then
// quality, then registration order.
func (r *Router) Rank(c classify.Classification) []Candidate {
	providers := r.registry.Providers()
	out := make([]Candidate, len(providers))
	for i, p := range providers {
		d := p.Descriptor()
		out[i] = Candidate{Provider: p, Descriptor: d, Score: Score(d, c)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := scoreKey(out[i].Score), scoreKey(out[j].Score)
		if si != sj {
			return si > sj
		}
		return out[i].Quality > out[j].Quality
	})
	return out
}

// Decide picks the winner without invoking it.
func (r *Router) Decide(c classify.Classification) (Decision, error) {
	ranked := r.Rank(c)
	if len(ranked) == 0 {
		return Decision{}, ErrNoProviders
	}
	return Decision{
		Winner:       ranked[0],
		Reason:       explain(ranked[0].Descriptor, c, ranked[0].Score),
		Alternatives: ranked[1:],
	}, nil
}

// SelectAndInvoke calls the winning provider once. A failed call comes back
// as a failed Outcome; the error return is only ErrNoProviders.
func (r *Router) SelectAndInvoke(ctx context.Context, prompt string, c classify.Classification) (ai.Descriptor, ai.Outcome, error) {
	ranked := r.Rank(c)
	if len(ranked) == 0 {
		return ai.Descriptor{}, ai.Outcome{}, ErrNoProviders
	}

	winner := ranked[0]
	log.Printf("[router] prompt=%q category=%s -> %s (score=%.3f)",
		truncateForLog(prompt, 50), c.Category, winner.ID, winner.Score)

	outcome := winner.Provider.Call(ctx, prompt)
	if outcome.Success || !r.opts.Fallback {
		return winner.Descriptor, outcome, nil
	}

	return r.fallback(ctx, prompt, ranked, outcome)
}

func (r *Router) fallback(ctx context.Context, prompt string, ranked []Candidate, first ai.Outcome) (ai.Descriptor, ai.Outcome, error) {
	last := first
	for _, cand := range ranked[1:] {
		if ctx.Err() != nil {
			break
		}
		log.Printf("[router] %s failed (%s), trying %s", ranked[0].ID, last.ErrorMessage(), cand.ID)
		outcome := cand.Provider.Call(ctx, prompt)
		if outcome.Success {
			return cand.Descriptor, outcome, nil
		}
		last = outcome
	}

	return ranked[0].Descriptor, ai.Failed(&ai.CallError{
		Message: fmt.Sprintf("All providers failed. Last error: %s", last.ErrorMessage()),
		Err:     last.Err,
	}), nil
}

// Route classifies prompt and then behaves like SelectAndInvoke.
func (r *Router) Route(ctx context.Context, prompt string) (ai.Descriptor, ai.Outcome, classify.Classification, error) {
	c := classify.Classify(prompt)
	d, outcome, err := r.SelectAndInvoke(ctx, prompt, c)
	return d, outcome, c, err
}

// Stream selects the winner and returns its chunk stream. There is no
// fallback once streaming has started.
func (r *Router) Stream(ctx context.Context, prompt string, c classify.Classification) (ai.Descriptor, <-chan ai.Chunk, error) {
	ranked := r.Rank(c)
	if len(ranked) == 0 {
		return ai.Descriptor{}, nil, ErrNoProviders
	}

	winner := ranked[0]
	log.Printf("[router] stream prompt=%q category=%s -> %s (score=%.3f)",
		truncateForLog(prompt, 50), c.Category, winner.ID, winner.Score)

	return winner.Descriptor, winner.Provider.Stream(ctx, prompt), nil
}

func truncateForLog(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
