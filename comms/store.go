package comms

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL DEFAULT 'group',
	members    TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_channel_time ON messages(channel_id, created_at);
`

// SQLiteStore persists channels and messages in a shared SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps the given database. Call InitTables before use.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InitTables creates the channels and messages tables.
func (s *SQLiteStore) InitTables() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create comms schema: %w", err)
	}
	return nil
}

// EnsureChannel creates the named group channel if missing.
func (s *SQLiteStore) EnsureChannel(name string) (*Channel, error) {
	if ch, err := s.byName(name); err == nil {
		return ch, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.insertChannel(name, KindGroup, nil)
}

// DirectChannel returns the direct channel for the unordered agent pair,
// creating it on first use. The channel name is derived from the sorted
// pair so repeated calls are idempotent regardless of argument order.
func (s *SQLiteStore) DirectChannel(a, b string) (*Channel, error) {
	if a == "" || b == "" || a == b {
		return nil, fmt.Errorf("direct channel: need two distinct agents, got %q and %q", a, b)
	}
	pair := []string{a, b}
	sort.Strings(pair)
	name := "dm:" + pair[0] + ":" + pair[1]

	if ch, err := s.byName(name); err == nil {
		return ch, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.insertChannel(name, KindDirect, pair)
}

// GetChannel retrieves a channel by ID.
func (s *SQLiteStore) GetChannel(id string) (*Channel, error) {
	row := s.db.QueryRow(`SELECT id, name, kind, members, created_at FROM channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %s: %w", id, ErrNotFound)
	}
	return ch, err
}

// ListChannels returns all channels, oldest first.
func (s *SQLiteStore) ListChannels() ([]*Channel, error) {
	rows, err := s.db.Query(`SELECT id, name, kind, members, created_at FROM channels ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// Post appends a message to a channel.
func (s *SQLiteStore) Post(channelID, senderID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("post: empty message")
	}
	if _, err := s.GetChannel(channelID); err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	m := &Message{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, channel_id, sender_id, content, created_at) VALUES (?,?,?,?,?)`,
		m.ID, m.ChannelID, m.SenderID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// History returns the channel's most recent messages, chronological order.
func (s *SQLiteStore) History(channelID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, channel_id, sender_id, content, created_at FROM (
			SELECT * FROM messages WHERE channel_id = ?
			ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`,
		channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", channelID, err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Inbox returns messages visible to the agent sent by others since the
// given time: everything in group channels, plus direct channels the agent
// is a member of.
func (s *SQLiteStore) Inbox(agentID string, since time.Time, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT m.id, m.channel_id, m.sender_id, m.content, m.created_at
		FROM messages m
		JOIN channels c ON c.id = m.channel_id
		WHERE m.sender_id != ?
		  AND m.created_at > ?
		  AND (c.kind = 'group' OR c.members LIKE ?)
		ORDER BY m.created_at ASC
		LIMIT ?`,
		agentID, since.UTC(), `%"`+agentID+`"%`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("inbox for %s: %w", agentID, err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) byName(name string) (*Channel, error) {
	row := s.db.QueryRow(`SELECT id, name, kind, members, created_at FROM channels WHERE name = ?`, name)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ch, err
}

func (s *SQLiteStore) insertChannel(name string, kind ChannelKind, members []string) (*Channel, error) {
	ch := &Channel{
		ID:        uuid.New().String(),
		Name:      name,
		Kind:      kind,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}
	membersJSON, _ := json.Marshal(ch.Members)
	_, err := s.db.Exec(
		`INSERT INTO channels (id, name, kind, members, created_at) VALUES (?,?,?,?,?)`,
		ch.ID, ch.Name, string(ch.Kind), string(membersJSON), ch.CreatedAt,
	)
	if err != nil {
		// Another writer may have created the channel between the lookup and
		// the insert. The unique name makes the retry safe.
		if existing, lookupErr := s.byName(name); lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("insert channel %s: %w", name, err)
	}
	return ch, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(sc scanner) (*Channel, error) {
	var ch Channel
	var kind, membersJSON string
	if err := sc.Scan(&ch.ID, &ch.Name, &kind, &membersJSON, &ch.CreatedAt); err != nil {
		return nil, err
	}
	ch.Kind = ChannelKind(kind)
	_ = json.Unmarshal([]byte(membersJSON), &ch.Members)
	return &ch, nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
