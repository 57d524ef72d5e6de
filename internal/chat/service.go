package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/classify"
	"github.com/Vovarama1992/meta-ai-router/internal/router"
)

type service struct {
	sessions *Sessions
	router   Router
	timeout  time.Duration
	now      func() time.Time
}

// NewService wires the session manager to a router. timeout bounds every
// provider call; zero means no bound beyond the caller's context.
func NewService(sessions *Sessions, r Router, timeout time.Duration) Service {
	return &service{
		sessions: sessions,
		router:   r,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *service) Chat(ctx context.Context, sessionID, prompt string) (Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Reply{}, ErrEmptyPrompt
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	log.Printf("[svc] session=%s prompt=%q", shortID(sessionID), truncate(prompt, 80))

	var reply Reply
	err = sess.WithTurn(func() error {
		msg, c, err := s.exchange(ctx, prompt)
		if err != nil {
			return err
		}
		sess.Append(msg)
		s.persist(ctx, sess)

		reply = Reply{Message: msg, Classification: c, Explanation: classify.Explain(c), Stats: sess.Stats()}
		return nil
	})
	return reply, err
}

func (s *service) ChatStream(ctx context.Context, sessionID, prompt string, emit func(string) error) (Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Reply{}, ErrEmptyPrompt
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	log.Printf("[svc] stream session=%s prompt=%q", shortID(sessionID), truncate(prompt, 80))

	var reply Reply
	err = sess.WithTurn(func() error {
		c := classify.Classify(prompt)

		callCtx, cancel := s.callContext(ctx)
		defer cancel()

		desc, chunks, err := s.router.Stream(callCtx, prompt, c)
		if err != nil {
			return err
		}

		var (
			b    strings.Builder
			scan ai.SentinelScanner
		)
		for chunk := range chunks {
			if chunk.Err != nil {
				return &ProviderFailure{Provider: desc, Classification: c, Err: chunk.Err}
			}
			text, tripped := scan.Feed(chunk.Text)
			if text != "" {
				if err := emit(text); err != nil {
					log.Printf("[svc] stream session=%s aborted by consumer: %v", shortID(sessionID), err)
					return err
				}
				b.WriteString(text)
			}
			if tripped {
				return &ProviderFailure{Provider: desc, Classification: c, Err: sentinelError(desc, &scan, chunks)}
			}
		}

		// The producer closes quietly when the context ends, so a closed
		// channel is only a complete answer if the context is still alive.
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := callCtx.Err(); err != nil {
			return &ProviderFailure{Provider: desc, Classification: c, Err: &ai.CallError{Provider: desc.DisplayName, Message: "request timeout", Err: err}}
		}

		if tail := scan.Flush(); tail != "" {
			if err := emit(tail); err != nil {
				return err
			}
			b.WriteString(tail)
		}

		text := strings.TrimSpace(b.String())
		if text == "" {
			return &ProviderFailure{Provider: desc, Classification: c, Err: &ai.CallError{Provider: desc.DisplayName, Message: "empty response"}}
		}

		msg := s.message(prompt, text, c, desc)
		sess.Append(msg)
		s.persist(ctx, sess)

		reply = Reply{Message: msg, Classification: c, Explanation: classify.Explain(c), Stats: sess.Stats()}
		return nil
	})
	return reply, err
}

// sentinelError reads the rest of the stream as the message that followed
// the "[ERROR]" sentinel.
func sentinelError(desc ai.Descriptor, scan *ai.SentinelScanner, rest <-chan ai.Chunk) error {
	for c := range rest {
		if c.Err != nil {
			break
		}
		scan.Feed(c.Text)
	}

	text := strings.TrimSpace(scan.After())
	if text == "" {
		text = "stream failed"
	}
	return &ai.CallError{Provider: desc.DisplayName, Message: text}
}

func (s *service) Classify(prompt string) (classify.Classification, string) {
	c := classify.Classify(prompt)
	return c, classify.Explain(c)
}

func (s *service) Decide(prompt string) (router.Decision, classify.Classification, error) {
	c := classify.Classify(prompt)
	d, err := s.router.Decide(c)
	return d, c, err
}

func (s *service) Providers() []ai.Descriptor {
	return s.router.Descriptors()
}

func (s *service) Undo(ctx context.Context, sessionID string) (Message, Stats, error) {
	return s.step(ctx, sessionID, (*Session).Undo)
}

func (s *service) Redo(ctx context.Context, sessionID string) (Message, Stats, error) {
	return s.step(ctx, sessionID, (*Session).Redo)
}

func (s *service) step(ctx context.Context, sessionID string, op func(*Session) (Message, error)) (Message, Stats, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Message{}, Stats{}, err
	}

	var msg Message
	err = sess.WithTurn(func() error {
		m, err := op(sess)
		if err != nil {
			return err
		}
		msg = m
		s.persist(ctx, sess)
		return nil
	})
	return msg, sess.Stats(), err
}

func (s *service) Clear(ctx context.Context, sessionID string) (Stats, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}

	_ = sess.WithTurn(func() error {
		sess.Clear()
		s.persist(ctx, sess)
		return nil
	})
	return sess.Stats(), nil
}

func (s *service) History(ctx context.Context, sessionID string) ([]Message, Stats, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, Stats{}, err
	}
	return sess.History(), sess.Stats(), nil
}

// Enqueue does not take the turn lock: the queue is independent of history,
// and a prompt queued during a batch run waits for the next one.
func (s *service) Enqueue(ctx context.Context, sessionID, prompt string) (Stats, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}
	if err := sess.Enqueue(prompt); err != nil {
		return sess.Stats(), err
	}
	s.persist(ctx, sess)
	return sess.Stats(), nil
}

func (s *service) Pending(ctx context.Context, sessionID string) ([]string, Stats, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, Stats{}, err
	}
	return sess.Pending(), sess.Stats(), nil
}

// ProcessQueue drains the queue and answers every prompt in FIFO order, one
// provider call at a time. A failed item is reported and skipped.
func (s *service) ProcessQueue(ctx context.Context, sessionID string) ([]BatchResult, Stats, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, Stats{}, err
	}

	var results []BatchResult
	_ = sess.WithTurn(func() error {
		prompts := sess.DrainQueue()
		s.persist(ctx, sess)
		log.Printf("[svc] session=%s processing %d queued prompts", shortID(sessionID), len(prompts))

		results = make([]BatchResult, 0, len(prompts))
		for _, p := range prompts {
			results = append(results, s.processOne(ctx, sess, p))
		}
		return nil
	})
	return results, sess.Stats(), nil
}

// ProcessNext answers the oldest queued prompt. The prompt leaves the queue
// whether or not the provider succeeds.
func (s *service) ProcessNext(ctx context.Context, sessionID string) (BatchResult, Stats, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return BatchResult{}, Stats{}, err
	}

	var result BatchResult
	err = sess.WithTurn(func() error {
		p, ok := sess.Dequeue()
		if !ok {
			return ErrNoPending
		}
		s.persist(ctx, sess)
		result = s.processOne(ctx, sess, p)
		return nil
	})
	return result, sess.Stats(), err
}

func (s *service) processOne(ctx context.Context, sess *Session, prompt string) BatchResult {
	msg, _, err := s.exchange(ctx, prompt)
	if err != nil {
		log.Printf("[svc] queued prompt %q failed: %v", truncate(prompt, 50), err)
		return BatchResult{Prompt: prompt, Error: err.Error()}
	}
	sess.Append(msg)
	s.persist(ctx, sess)
	return BatchResult{Prompt: prompt, Success: true, Message: &msg}
}

// exchange classifies and routes one prompt. It never touches the session.
func (s *service) exchange(ctx context.Context, prompt string) (Message, classify.Classification, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	desc, outcome, c, err := s.router.Route(callCtx, prompt)
	if err != nil {
		return Message{}, c, err
	}
	if !outcome.Success {
		log.Printf("[svc] provider %s failed: %s", desc.ID, outcome.ErrorMessage())
		return Message{}, c, &ProviderFailure{Provider: desc, Classification: c, Err: outcome.Err}
	}
	return s.message(prompt, outcome.Response, c, desc), c, nil
}

func (s *service) message(prompt, response string, c classify.Classification, desc ai.Descriptor) Message {
	return Message{
		UserPrompt:   prompt,
		AIResponse:   response,
		Category:     c.Category,
		ProviderID:   desc.ID,
		ProviderName: desc.DisplayName,
		Timestamp:    s.now().UTC(),
	}
}

func (s *service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// persist writes the session through to the store. The in-memory session
// stays authoritative, so a failed write is logged and not returned.
func (s *service) persist(ctx context.Context, sess *Session) {
	if err := s.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		log.Printf("[svc] %v", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// IsPrecondition reports whether err is a session precondition failure
// rather than a provider or storage problem.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrEmptyHistory) ||
		errors.Is(err, ErrNothingToRedo) ||
		errors.Is(err, ErrEmptyPrompt) ||
		errors.Is(err, ErrNoPending)
}
