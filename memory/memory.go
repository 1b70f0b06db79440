// Package memory stores per-agent short-term memory, ranked by importance
// and recency. Expired items are hidden from retrieval but never purged
// here.
package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind categorizes a memory item.
type Kind string

const (
	KindWorkItem     Kind = "work_item"
	KindConversation Kind = "conversation"
	KindObservation  Kind = "observation"
)

// Item is a single piece of agent memory. Importance runs 1 (trivia) to 10
// (critical).
type Item struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agent_id"`
	Kind         Kind       `json:"kind"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Importance   int        `json:"importance"`
	LastAccessed time.Time  `json:"last_accessed"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id            TEXT PRIMARY KEY,
	agent_id      TEXT NOT NULL,
	kind          TEXT NOT NULL DEFAULT 'observation',
	title         TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	importance    INTEGER NOT NULL DEFAULT 5,
	last_accessed DATETIME NOT NULL,
	created_at    DATETIME NOT NULL,
	expires_at    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_id, importance, last_accessed);
`

// Store persists agent memories in a shared SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore wraps the given database. Call InitTables before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitTables creates the memories table.
func (s *Store) InitTables() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create memories schema: %w", err)
	}
	return nil
}

// Remember saves a memory item. Importance is clamped to [1, 10]; a zero
// ttl means the memory never expires.
func (s *Store) Remember(agentID string, kind Kind, title, content string, importance int, ttl time.Duration) (*Item, error) {
	if agentID == "" {
		return nil, fmt.Errorf("remember: agent id is required")
	}
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}
	now := time.Now().UTC()
	item := &Item{
		ID:           uuid.New().String(),
		AgentID:      agentID,
		Kind:         kind,
		Title:        title,
		Content:      content,
		Importance:   importance,
		LastAccessed: now,
		CreatedAt:    now,
	}
	var expires any
	if ttl > 0 {
		t := now.Add(ttl)
		item.ExpiresAt = &t
		expires = t
	}
	_, err := s.db.Exec(`
		INSERT INTO memories (id, agent_id, kind, title, content, importance, last_accessed, created_at, expires_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		item.ID, item.AgentID, string(item.Kind), item.Title, item.Content,
		item.Importance, item.LastAccessed, item.CreatedAt, expires,
	)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return item, nil
}

// Recall returns the agent's non-expired memories ranked by importance,
// then recency of access.
func (s *Store) Recall(agentID string, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, agent_id, kind, title, content, importance, last_accessed, created_at, expires_at
		FROM memories
		WHERE agent_id = ?
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY importance DESC, last_accessed DESC
		LIMIT ?`,
		agentID, time.Now().UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recall for %s: %w", agentID, err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var it Item
		var kind string
		var expires sql.NullTime
		err := rows.Scan(&it.ID, &it.AgentID, &kind, &it.Title, &it.Content,
			&it.Importance, &it.LastAccessed, &it.CreatedAt, &expires)
		if err != nil {
			return nil, err
		}
		it.Kind = Kind(kind)
		if expires.Valid {
			it.ExpiresAt = &expires.Time
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// Touch refreshes last_accessed on the agent's memories at or above the
// importance threshold, keeping frequently relevant memories from aging
// out of the ranking. Returns the number of refreshed items.
func (s *Store) Touch(agentID string, minImportance int) (int, error) {
	res, err := s.db.Exec(
		`UPDATE memories SET last_accessed = ? WHERE agent_id = ? AND importance >= ?`,
		time.Now().UTC(), agentID, minImportance,
	)
	if err != nil {
		return 0, fmt.Errorf("touch for %s: %w", agentID, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
