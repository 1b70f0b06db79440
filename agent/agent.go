// Package agent holds the agent roster and the per-agent runtime loop.
package agent

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vibecorp/vibecorp/decision"
)

// statusMaxLen bounds the free-text status line agents set about
// themselves.
const statusMaxLen = 60

// Agent is one member of the simulated organization.
type Agent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Role       decision.Role `json:"role"`
	Persona    string        `json:"persona"`
	Status     string        `json:"status"`
	LastActive time.Time     `json:"last_active"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Ref converts the agent to the decision engine's lightweight view.
func (a *Agent) Ref() decision.AgentRef {
	return decision.AgentRef{ID: a.ID, Name: a.Name, Role: a.Role}
}

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	role        TEXT NOT NULL,
	persona     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'idle',
	last_active DATETIME NOT NULL,
	created_at  DATETIME NOT NULL
);
`

// Store persists the agent roster.
type Store struct {
	db *sql.DB
}

// NewStore wraps the given database. Call InitTables before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitTables creates the agents table.
func (s *Store) InitTables() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create agents schema: %w", err)
	}
	return nil
}

// Upsert inserts the agent or refreshes its name, role, and persona. A new
// row takes the agent's sanitized status (empty means idle); the status and
// timestamps of an existing row are preserved so restarts do not reset
// agent state.
func (s *Store) Upsert(a *Agent) error {
	if a.ID == "" || a.Name == "" {
		return fmt.Errorf("upsert agent: id and name are required")
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, role, persona, status, last_active, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, role=excluded.role, persona=excluded.persona`,
		a.ID, a.Name, string(a.Role), a.Persona, SanitizeStatus(a.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", a.ID, err)
	}
	return nil
}

// Get returns one agent by ID.
func (s *Store) Get(id string) (*Agent, error) {
	row := s.db.QueryRow(`SELECT id, name, role, persona, status, last_active, created_at FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// List returns all agents ordered by name.
func (s *Store) List() ([]*Agent, error) {
	rows, err := s.db.Query(`SELECT id, name, role, persona, status, last_active, created_at FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// SetStatus updates the agent's status line and activity timestamp. This
// is the only mutation point for status, so every stored value passes
// through the same sanitizer.
func (s *Store) SetStatus(id, status string) (string, error) {
	clean := SanitizeStatus(status)
	res, err := s.db.Exec(`UPDATE agents SET status = ?, last_active = ? WHERE id = ?`,
		clean, time.Now().UTC(), id)
	if err != nil {
		return "", fmt.Errorf("set status for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("set status: agent %s not found", id)
	}
	return clean, nil
}

// SanitizeStatus normalizes a free-text status into lowercase snake_case,
// keeps only [a-z0-9_], and truncates to 60 characters. Empty input
// becomes "idle".
func SanitizeStatus(status string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(status)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ', r == '_', r == '-':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	clean := strings.TrimRight(b.String(), "_")
	if len(clean) > statusMaxLen {
		clean = strings.TrimRight(clean[:statusMaxLen], "_")
	}
	if clean == "" {
		return "idle"
	}
	return clean
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(sc scanner) (*Agent, error) {
	var a Agent
	var role string
	err := sc.Scan(&a.ID, &a.Name, &role, &a.Persona, &a.Status, &a.LastActive, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	a.Role = decision.Role(role)
	return &a, nil
}
