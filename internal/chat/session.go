package chat

import (
	"strings"
	"sync"

	"github.com/Vovarama1992/meta-ai-router/internal/classify"
)

// Session is one conversation: the history, the undo stack that feeds redo,
// and the queue of prompts waiting for manual processing. Every method is
// atomic; WithTurn serializes multi-step work on the same session.
type Session struct {
	id   string
	turn sync.Mutex

	mu      sync.Mutex
	history []Message
	undone  []Message
	pending []string

	processed  int
	undos      int
	redos      int
	categories map[classify.Category]int
}

func NewSession(id string) *Session {
	return &Session{id: id, categories: make(map[classify.Category]int)}
}

func (s *Session) ID() string { return s.id }

// Append adds an exchange and drops whatever undo had set aside.
func (s *Session) Append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, m)
	s.undone = nil
	s.processed++
	s.categories[m.Category]++
}

func (s *Session) Undo() (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return Message{}, ErrEmptyHistory
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.undone = append(s.undone, last)
	s.undos++
	return last, nil
}

func (s *Session) Redo() (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undone) == 0 {
		return Message{}, ErrNothingToRedo
	}
	m := s.undone[len(s.undone)-1]
	s.undone = s.undone[:len(s.undone)-1]
	s.history = append(s.history, m)
	s.redos++
	return m, nil
}

// Clear empties history, undo stack and queue. Counters are kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.undone = nil
	s.pending = nil
}

func (s *Session) Enqueue(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, prompt)
	return nil
}

// DrainQueue returns the queue in FIFO order and leaves it empty.
func (s *Session) DrainQueue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending
	s.pending = nil
	if out == nil {
		out = []string{}
	}
	return out
}

// Dequeue pops the oldest queued prompt.
func (s *Session) Dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return "", false
	}
	p := s.pending[0]
	s.pending = s.pending[1:]
	return p, true
}

func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message{}, s.history...)
}

func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.pending...)
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats := make(map[classify.Category]int, len(s.categories))
	for k, v := range s.categories {
		cats[k] = v
	}
	return Stats{
		Messages:   len(s.history),
		Pending:    len(s.pending),
		Undo:       len(s.history),
		Redo:       len(s.undone),
		Processed:  s.processed,
		Undos:      s.undos,
		Redos:      s.redos,
		Categories: cats,
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		History: append([]Message{}, s.history...),
		Undone:  append([]Message{}, s.undone...),
		Pending: append([]string{}, s.pending...),
	}
}

// Restore replaces the session state with snap. Counters are not part of a
// snapshot and stay as they are.
func (s *Session) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]Message(nil), snap.History...)
	s.undone = append([]Message(nil), snap.Undone...)
	s.pending = append([]string(nil), snap.Pending...)
}

// WithTurn runs fn while holding the session's turn lock, so that two
// requests on the same session never interleave their steps.
func (s *Session) WithTurn(fn func() error) error {
	s.turn.Lock()
	defer s.turn.Unlock()
	return fn()
}
