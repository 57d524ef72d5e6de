package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/classify"
	"github.com/Vovarama1992/meta-ai-router/internal/router"
)

// scripted answers "re: <prompt>" unless the prompt contains "fail".
func scripted(calls *atomic.Int32) ai.CallFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		if calls != nil {
			calls.Add(1)
		}
		if strings.Contains(prompt, "fail") {
			return "", errors.New("upstream exploded")
		}
		return "re: " + prompt, nil
	}
}

func newTestService(t *testing.T, specs ...ai.Spec) (Service, *Sessions) {
	t.Helper()
	if len(specs) == 0 {
		specs = []ai.Spec{{
			Kind:        ai.KindCustom,
			ID:          "scripted",
			DisplayName: "Scripted",
			Strengths:   []classify.Category{classify.CategoryGeneral, classify.CategoryMath},
			Quality:     0.9,
			Call:        scripted(nil),
		}}
	}
	reg, err := ai.BuildRegistry(specs)
	require.NoError(t, err)

	sessions := NewSessions(NewMemoryStore())
	return NewService(sessions, router.New(reg, router.Options{}), time.Second), sessions
}

func TestService_Chat(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reply, err := svc.Chat(ctx, "s1", "  what is 2+2  ")
	require.NoError(t, err)
	assert.Equal(t, "what is 2+2", reply.Message.UserPrompt)
	assert.Equal(t, "re: what is 2+2", reply.Message.AIResponse)
	assert.Equal(t, classify.CategoryMath, reply.Message.Category)
	assert.Equal(t, "scripted", reply.Message.ProviderID)
	assert.Equal(t, "Scripted", reply.Message.ProviderName)
	assert.False(t, reply.Message.Timestamp.IsZero())
	assert.Contains(t, reply.Explanation, "Math")
	assert.Equal(t, 1, reply.Stats.Messages)

	hist, _, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	other, _, err := svc.History(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_ChatFailureIsNotAppended(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "s1", "please fail")
	var pf *ProviderFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "scripted", pf.Provider.ID)
	assert.ErrorIs(t, err, ai.ErrCallFailed)
	assert.Contains(t, err.Error(), "upstream exploded")

	hist, stats, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, hist)
	assert.Zero(t, stats.Processed)
}

func TestService_ChatEmptyPrompt(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Chat(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestService_ChatNoProviders(t *testing.T) {
	reg, err := ai.NewRegistry()
	require.NoError(t, err)
	svc := NewService(NewSessions(NewMemoryStore()), router.New(reg, router.Options{}), time.Second)

	_, err = svc.Chat(context.Background(), "s1", "hello")
	assert.ErrorIs(t, err, router.ErrNoProviders)
}

func TestService_Timeout(t *testing.T) {
	slow := ai.Spec{
		Kind:      ai.KindCustom,
		ID:        "slow",
		Strengths: []classify.Category{classify.CategoryGeneral},
		Quality:   0.5,
		Call: func(ctx context.Context, prompt string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	reg, err := ai.BuildRegistry([]ai.Spec{slow})
	require.NoError(t, err)
	svc := NewService(NewSessions(NewMemoryStore()), router.New(reg, router.Options{}), 20*time.Millisecond)

	_, err = svc.Chat(context.Background(), "s1", "tell me something")
	var pf *ProviderFailure
	require.ErrorAs(t, err, &pf)
	assert.Contains(t, err.Error(), "request timeout")
}

func TestService_UndoRedoClear(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Undo(ctx, "s1")
	assert.ErrorIs(t, err, ErrEmptyHistory)

	_, err = svc.Chat(ctx, "s1", "first")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, "s1", "second")
	require.NoError(t, err)

	m, stats, err := svc.Undo(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second", m.UserPrompt)
	assert.Equal(t, 1, stats.Messages)
	assert.Equal(t, 1, stats.Redo)

	m, stats, err = svc.Redo(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second", m.UserPrompt)
	assert.Equal(t, 2, stats.Messages)

	_, _, err = svc.Redo(ctx, "s1")
	assert.ErrorIs(t, err, ErrNothingToRedo)

	_, err = svc.Enqueue(ctx, "s1", "queued")
	require.NoError(t, err)
	stats, err = svc.Clear(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, stats.Messages)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Redo)
}

func TestService_ProcessQueue(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newTestService(t, ai.Spec{
		Kind:      ai.KindCustom,
		ID:        "scripted",
		Strengths: []classify.Category{classify.CategoryGeneral},
		Quality:   0.9,
		Call:      scripted(&calls),
	})
	ctx := context.Background()

	for _, p := range []string{"one", "two fail", "three"} {
		_, err := svc.Enqueue(ctx, "s1", p)
		require.NoError(t, err)
	}
	_, err := svc.Enqueue(ctx, "s1", "  ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	pending, stats, err := svc.Pending(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two fail", "three"}, pending)
	assert.Equal(t, 3, stats.Pending)

	results, stats, err := svc.ProcessQueue(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "upstream exploded")
	assert.True(t, results[2].Success)
	assert.EqualValues(t, 3, calls.Load())
	assert.Zero(t, stats.Pending)

	hist, _, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "one", hist[0].UserPrompt)
	assert.Equal(t, "three", hist[1].UserPrompt)

	results, _, err = svc.ProcessQueue(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_ProcessNext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ProcessNext(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoPending)

	_, err = svc.Enqueue(ctx, "s1", "a fail")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, "s1", "b")
	require.NoError(t, err)

	res, stats, err := svc.ProcessNext(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "a fail", res.Prompt)
	assert.Equal(t, 1, stats.Pending)

	res, stats, err = svc.ProcessNext(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.Message)
	assert.Equal(t, "re: b", res.Message.AIResponse)
	assert.Equal(t, 1, stats.Messages)
	assert.Zero(t, stats.Pending)
}

func TestService_ChatStream(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var chunks []string
	reply, err := svc.ChatStream(ctx, "s1", "tell me a story", func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"re: ", "tell ", "me ", "a ", "story"}, chunks)
	assert.Equal(t, "re: tell me a story", reply.Message.AIResponse)

	hist, _, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestService_ChatStreamDiscardsPartial(t *testing.T) {
	ctx := context.Background()

	t.Run("provider-error", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.ChatStream(ctx, "s1", "please fail", func(string) error { return nil })
		var pf *ProviderFailure
		require.ErrorAs(t, err, &pf)

		hist, _, _ := svc.History(ctx, "s1")
		assert.Empty(t, hist)
	})

	t.Run("consumer-gone", func(t *testing.T) {
		svc, _ := newTestService(t)
		gone := errors.New("client disconnected")
		n := 0
		_, err := svc.ChatStream(ctx, "s1", "tell me a long story", func(string) error {
			n++
			if n == 2 {
				return gone
			}
			return nil
		})
		assert.ErrorIs(t, err, gone)

		hist, _, _ := svc.History(ctx, "s1")
		assert.Empty(t, hist)
	})

	t.Run("error-sentinel", func(t *testing.T) {
		svc, _ := newTestService(t, ai.Spec{
			Kind:      ai.KindCustom,
			ID:        "sentinel",
			Strengths: []classify.Category{classify.CategoryGeneral},
			Quality:   0.9,
			Call: func(ctx context.Context, prompt string) (string, error) {
				return "partial answer [ERROR] quota exceeded", nil
			},
		})
		var got []string
		_, err := svc.ChatStream(ctx, "s1", "tell me", func(s string) error {
			got = append(got, s)
			return nil
		})
		var pf *ProviderFailure
		require.ErrorAs(t, err, &pf)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Equal(t, []string{"partial ", "answer "}, got)

		hist, _, _ := svc.History(ctx, "s1")
		assert.Empty(t, hist)
	})

	t.Run("error-sentinel-mid-chunk", func(t *testing.T) {
		svc, _ := newTestService(t, ai.Spec{
			Kind:      ai.KindCustom,
			ID:        "sentinel",
			Strengths: []classify.Category{classify.CategoryGeneral},
			Quality:   0.9,
			Call: func(ctx context.Context, prompt string) (string, error) {
				return "partial answer:[ERROR] quota exceeded", nil
			},
		})
		var got strings.Builder
		_, err := svc.ChatStream(ctx, "s1", "tell me", func(s string) error {
			got.WriteString(s)
			return nil
		})
		var pf *ProviderFailure
		require.ErrorAs(t, err, &pf)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Equal(t, "partial answer:", got.String())

		hist, _, _ := svc.History(ctx, "s1")
		assert.Empty(t, hist)
	})

	t.Run("error-sentinel-split", func(t *testing.T) {
		sr := &chunkRouter{chunks: []string{"ok [ERR", "OR] bo", "om"}}
		svc := NewService(NewSessions(NewMemoryStore()), sr, time.Second)

		var got strings.Builder
		_, err := svc.ChatStream(ctx, "s1", "tell me", func(s string) error {
			got.WriteString(s)
			return nil
		})
		var pf *ProviderFailure
		require.ErrorAs(t, err, &pf)
		assert.Contains(t, err.Error(), "boom")
		assert.Equal(t, "ok ", got.String())
		assert.NotContains(t, got.String(), "[")

		hist, _, _ := svc.History(ctx, "s1")
		assert.Empty(t, hist)
	})

	t.Run("bracket-prefix-released", func(t *testing.T) {
		sr := &chunkRouter{chunks: []string{"see [ERR", "ATA] list [E"}}
		svc := NewService(NewSessions(NewMemoryStore()), sr, time.Second)

		var got strings.Builder
		reply, err := svc.ChatStream(ctx, "s1", "tell me", func(s string) error {
			got.WriteString(s)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "see [ERRATA] list [E", got.String())
		assert.Equal(t, "see [ERRATA] list [E", reply.Message.AIResponse)
	})
}

// chunkRouter streams a fixed list of chunks from a single provider.
type chunkRouter struct {
	chunks []string
}

func (r *chunkRouter) desc() ai.Descriptor {
	return ai.Descriptor{ID: "fixed", DisplayName: "Fixed", Strengths: []classify.Category{classify.CategoryGeneral}, Quality: 0.5}
}

func (r *chunkRouter) Route(ctx context.Context, prompt string) (ai.Descriptor, ai.Outcome, classify.Classification, error) {
	return r.desc(), ai.Outcome{Success: true, Response: strings.Join(r.chunks, "")}, classify.Classify(prompt), nil
}

func (r *chunkRouter) Stream(ctx context.Context, prompt string, c classify.Classification) (ai.Descriptor, <-chan ai.Chunk, error) {
	out := make(chan ai.Chunk, len(r.chunks))
	for _, t := range r.chunks {
		out <- ai.Chunk{Text: t}
	}
	close(out)
	return r.desc(), out, nil
}

func (r *chunkRouter) Decide(c classify.Classification) (router.Decision, error) {
	return router.Decision{}, router.ErrNoProviders
}

func (r *chunkRouter) Descriptors() []ai.Descriptor { return []ai.Descriptor{r.desc()} }

func TestService_SameSessionIsSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	spec := ai.Spec{
		Kind:      ai.KindCustom,
		ID:        "slowish",
		Strengths: []classify.Category{classify.CategoryGeneral},
		Quality:   0.9,
		Call: func(ctx context.Context, prompt string) (string, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return "ok " + prompt, nil
		},
	}
	svc, _ := newTestService(t, spec)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Chat(ctx, "same", "tell me something")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInFlight.Load())
	hist, _, err := svc.History(ctx, "same")
	require.NoError(t, err)
	assert.Len(t, hist, 8)
}

func TestService_PersistsThroughStore(t *testing.T) {
	store := NewMemoryStore()
	reg, err := ai.BuildRegistry([]ai.Spec{{
		Kind:      ai.KindCustom,
		ID:        "scripted",
		Strengths: []classify.Category{classify.CategoryGeneral},
		Quality:   0.9,
		Call:      scripted(nil),
	}})
	require.NoError(t, err)
	r := router.New(reg, router.Options{})
	ctx := context.Background()

	svc := NewService(NewSessions(store), r, time.Second)
	_, err = svc.Chat(ctx, "s1", "remember me")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, "s1", "queued")
	require.NoError(t, err)

	// a fresh manager sees the same state
	restarted := NewService(NewSessions(store), r, time.Second)
	hist, stats, err := restarted.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "remember me", hist[0].UserPrompt)
	assert.Equal(t, 1, stats.Pending)
}

func TestService_ClassifyAndDecide(t *testing.T) {
	svc, _ := newTestService(t)

	c, explanation := svc.Classify("hello there")
	assert.Equal(t, classify.CategoryGreeting, c.Category)
	assert.NotEmpty(t, explanation)

	d, c, err := svc.Decide("solve the equation")
	require.NoError(t, err)
	assert.Equal(t, classify.CategoryMath, c.Category)
	assert.Equal(t, "scripted", d.Winner.ID)

	assert.Len(t, svc.Providers(), 1)
}
