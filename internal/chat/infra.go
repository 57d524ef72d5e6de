package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Dialect doubles as the database/sql driver name.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var schemas = map[Dialect]string{
	DialectPostgres: `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			snapshot   TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
	DialectSQLite: `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			snapshot   TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
}

type sqlStore struct {
	db      *sql.DB
	dialect Dialect
	load    string
	save    string
}

// NewSQLStore keeps one JSON snapshot row per session and creates the table
// if it is missing.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (Store, error) {
	schema, ok := schemas[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create chat_sessions: %w", err)
	}

	s := &sqlStore{db: db, dialect: dialect}
	if dialect == DialectPostgres {
		s.load = `SELECT snapshot FROM chat_sessions WHERE session_id = $1`
		s.save = `
			INSERT INTO chat_sessions (session_id, snapshot, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_id) DO UPDATE
			SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`
	} else {
		s.load = `SELECT snapshot FROM chat_sessions WHERE session_id = ?`
		s.save = `
			INSERT INTO chat_sessions (session_id, snapshot, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE
			SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`
	}
	return s, nil
}

func (s *sqlStore) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.load, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *sqlStore) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.save, sessionID, string(raw), time.Now().Unix())
	return err
}

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

// NewMemoryStore keeps snapshots until the process exits or Sessions
// evicts the session as idle.
func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string]Snapshot)}
}

func (m *memoryStore) Load(_ context.Context, sessionID string) (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.data[sessionID]
	if !ok {
		return Snapshot{}, false, nil
	}
	return copySnapshot(snap), true, nil
}

func (m *memoryStore) Save(_ context.Context, sessionID string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = copySnapshot(snap)
	return nil
}

func (m *memoryStore) forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
}

func copySnapshot(s Snapshot) Snapshot {
	return Snapshot{
		History: append([]Message(nil), s.History...),
		Undone:  append([]Message(nil), s.Undone...),
		Pending: append([]string(nil), s.Pending...),
	}
}
