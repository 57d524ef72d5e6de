package chat

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/classify"
	"github.com/Vovarama1992/meta-ai-router/internal/router"
)

var (
	ErrEmptyHistory  = errors.New("no messages to undo")
	ErrNothingToRedo = errors.New("no messages to redo")
	ErrEmptyPrompt   = errors.New("prompt cannot be empty")
	ErrNoPending     = errors.New("no pending prompts")
)

// Message is one (user, AI) exchange. Immutable once appended.
type Message struct {
	UserPrompt   string            `json:"user_prompt"`
	AIResponse   string            `json:"ai_response"`
	Category     classify.Category `json:"category"`
	ProviderID   string            `json:"provider_id"`
	ProviderName string            `json:"provider_name"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Stats: current sizes plus counters that only ever grow.
type Stats struct {
	Messages int `json:"messages"`
	Pending  int `json:"pending"`
	// Undo is how many exchanges undo can still remove. Every committed
	// exchange is undoable, so it always equals Messages (len of history).
	Undo int `json:"undo"`
	// Redo is the depth of the redo stack.
	Redo int `json:"redo"`

	Processed  int                       `json:"processed"`
	Undos      int                       `json:"undos"`
	Redos      int                       `json:"redos"`
	Categories map[classify.Category]int `json:"categories"`
}

// Snapshot is the persisted form of a session.
type Snapshot struct {
	History []Message `json:"history"`
	Undone  []Message `json:"undone"`
	Pending []string  `json:"pending"`
}

// Store: persistence
type Store interface {
	Load(ctx context.Context, sessionID string) (Snapshot, bool, error)
	Save(ctx context.Context, sessionID string, snap Snapshot) error
}

// Router is the routing capability the service drives.
type Router interface {
	Route(ctx context.Context, prompt string) (ai.Descriptor, ai.Outcome, classify.Classification, error)
	Stream(ctx context.Context, prompt string, c classify.Classification) (ai.Descriptor, <-chan ai.Chunk, error)
	Decide(c classify.Classification) (router.Decision, error)
	Descriptors() []ai.Descriptor
}

// Reply is what a successful chat turn produces.
type Reply struct {
	Message        Message                 `json:"message"`
	Classification classify.Classification `json:"classification"`
	Explanation    string                  `json:"explanation"`
	Stats          Stats                   `json:"session_stats"`
}

// BatchResult reports one processed queue item.
type BatchResult struct {
	Prompt  string   `json:"prompt"`
	Success bool     `json:"success"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ProviderFailure is returned when the chosen provider did not produce an
// answer. Nothing is appended to history in that case.
type ProviderFailure struct {
	Provider       ai.Descriptor
	Classification classify.Classification
	Err            error
}

func (e *ProviderFailure) Error() string { return e.Err.Error() }

func (e *ProviderFailure) Unwrap() error { return e.Err }

// Service: orchestration of classify, route and session bookkeeping.
type Service interface {
	Chat(ctx context.Context, sessionID, prompt string) (Reply, error)
	// ChatStream forwards chunks to emit as they arrive. The message is
	// appended only after the stream finished cleanly.
	ChatStream(ctx context.Context, sessionID, prompt string, emit func(string) error) (Reply, error)
	Classify(prompt string) (classify.Classification, string)
	Decide(prompt string) (router.Decision, classify.Classification, error)
	Providers() []ai.Descriptor

	Undo(ctx context.Context, sessionID string) (Message, Stats, error)
	Redo(ctx context.Context, sessionID string) (Message, Stats, error)
	Clear(ctx context.Context, sessionID string) (Stats, error)
	History(ctx context.Context, sessionID string) ([]Message, Stats, error)

	Enqueue(ctx context.Context, sessionID, prompt string) (Stats, error)
	Pending(ctx context.Context, sessionID string) ([]string, Stats, error)
	ProcessQueue(ctx context.Context, sessionID string) ([]BatchResult, Stats, error)
	ProcessNext(ctx context.Context, sessionID string) (BatchResult, Stats, error)
}
