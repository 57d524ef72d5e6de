package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Sessions hands out one *Session per ID, loading it from the store on first
// access. Sessions left idle can be evicted with Sweep; an evicted session
// is reloaded from the store on its next access.
type Sessions struct {
	store Store
	now   func() time.Time

	mu   sync.Mutex
	byID map[string]*liveSession
}

type liveSession struct {
	sess *Session
	seen time.Time
}

// forgetter is implemented by stores that hold snapshots only in memory and
// should drop them together with the live session.
type forgetter interface {
	forget(sessionID string)
}

func NewSessions(store Store) *Sessions {
	return &Sessions{store: store, now: time.Now, byID: make(map[string]*liveSession)}
}

func (m *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}

	m.mu.Lock()
	if e, ok := m.byID[id]; ok {
		e.seen = m.now()
		m.mu.Unlock()
		return e.sess, nil
	}
	m.mu.Unlock()

	s := NewSession(id)
	snap, found, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if found {
		s.Restore(snap)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.byID[id]; ok {
		e.seen = m.now()
		return e.sess, nil
	}
	m.byID[id] = &liveSession{sess: s, seen: m.now()}
	return s, nil
}

// Save writes the current state of s through to the store.
func (m *Sessions) Save(ctx context.Context, s *Session) error {
	if err := m.store.Save(ctx, s.ID(), s.Snapshot()); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID(), err)
	}
	return nil
}

func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Sweep evicts sessions not accessed for longer than idle and returns how
// many went. A session in the middle of a turn is kept. idle <= 0 evicts
// nothing.
func (m *Sessions) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-idle)

	var evicted []string
	m.mu.Lock()
	for id, e := range m.byID {
		if e.seen.After(cutoff) {
			continue
		}
		if !e.sess.turn.TryLock() {
			continue
		}
		delete(m.byID, id)
		e.sess.turn.Unlock()
		evicted = append(evicted, id)
	}
	m.mu.Unlock()

	if f, ok := m.store.(forgetter); ok {
		for _, id := range evicted {
			f.forget(id)
		}
	}
	if len(evicted) > 0 {
		log.Printf("[svc] evicted %d idle sessions, %d live", len(evicted), m.Len())
	}
	return len(evicted)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Sessions) RunSweeper(ctx context.Context, idle, interval time.Duration) error {
	if idle <= 0 || interval <= 0 {
		return nil
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Sweep(idle)
		}
	}
}
