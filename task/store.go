package task

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	agent_id     TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	priority     INTEGER NOT NULL DEFAULT 1,
	parent_id    TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tasks_agent_status ON tasks(agent_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
`

// SQLiteStore persists tasks in a shared SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps the given database. Call InitTables before use.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InitTables creates the tasks table and its indexes.
func (s *SQLiteStore) InitTables() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tasks schema: %w", err)
	}
	return nil
}

// Create persists a new pending task owned by agentID.
func (s *SQLiteStore) Create(agentID string, spec Spec, parentID string) (*Task, error) {
	if agentID == "" {
		return nil, fmt.Errorf("create task: agent id is required")
	}
	if strings.TrimSpace(spec.Title) == "" {
		return nil, fmt.Errorf("create task: title is required")
	}
	now := time.Now().UTC()
	t := &Task{
		ID:          uuid.New().String(),
		AgentID:     agentID,
		Title:       spec.Title,
		Description: spec.Description,
		Status:      StatusPending,
		Priority:    spec.Priority,
		ParentID:    parentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, agent_id, title, description, status, priority, parent_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.AgentID, t.Title, t.Description, string(t.Status), t.Priority, t.ParentID,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id string) (*Task, error) {
	row := s.db.QueryRow(selectCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// List returns tasks matching the filter, most urgent first.
func (s *SQLiteStore) List(filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString(selectCols + " FROM tasks WHERE 1=1")
	args := []any{}

	if filter.AgentID != "" {
		q.WriteString(" AND agent_id=?")
		args = append(args, filter.AgentID)
	}
	if filter.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*filter.Status))
	}
	if filter.ParentID != "" {
		q.WriteString(" AND parent_id=?")
		args = append(args, filter.ParentID)
	}
	q.WriteString(" ORDER BY priority ASC, created_at ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// OpenTasks returns the agent's open tasks, leaf tasks first. A task counts
// as a leaf when it has no non-completed children; parents blocked on open
// sub-work sort last. Ascending priority within each group.
func (s *SQLiteStore) OpenTasks(agentID string) ([]*Task, error) {
	rows, err := s.db.Query(selectCols+`
		FROM tasks t
		WHERE t.agent_id = ? AND t.status IN ('pending', 'in_progress')
		ORDER BY
			EXISTS (
				SELECT 1 FROM tasks c
				WHERE c.parent_id = t.id AND c.status != 'completed'
			) ASC,
			t.priority ASC,
			t.created_at ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("open tasks for %s: %w", agentID, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Transition moves a task along a valid status edge. The update is guarded
// on the previously observed status so a concurrent writer cannot slip a
// transition through an edge that was never checked.
func (s *SQLiteStore) Transition(id string, to Status) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}
	if !ValidTransition(t.Status, to) {
		return &InvalidTransitionError{TaskID: id, From: t.Status, To: to}
	}

	now := time.Now().UTC()
	var res sql.Result
	if to == StatusCompleted {
		res, err = s.db.Exec(
			`UPDATE tasks SET status=?, updated_at=?, completed_at=? WHERE id=? AND status=?`,
			string(to), now, now, id, string(t.Status),
		)
	} else {
		res, err = s.db.Exec(
			`UPDATE tasks SET status=?, updated_at=? WHERE id=? AND status=?`,
			string(to), now, id, string(t.Status),
		)
	}
	if err != nil {
		return fmt.Errorf("transition task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Lost a race: the status changed between read and update.
		return &InvalidTransitionError{TaskID: id, From: t.Status, To: to}
	}
	return nil
}

// ChildrenOf returns a task's direct children, most urgent first.
func (s *SQLiteStore) ChildrenOf(id string) ([]*Task, error) {
	rows, err := s.db.Query(
		selectCols+` FROM tasks WHERE parent_id = ? ORDER BY priority ASC, created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", id, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// AttachChildren creates the specs as pending children of parentID, owned by
// the parent's agent.
func (s *SQLiteStore) AttachChildren(parentID string, specs []Spec) ([]*Task, error) {
	parent, err := s.Get(parentID)
	if err != nil {
		return nil, err
	}
	children := make([]*Task, 0, len(specs))
	for _, spec := range specs {
		c, err := s.Create(parent.AgentID, spec, parentID)
		if err != nil {
			return children, fmt.Errorf("attach child %q: %w", spec.Title, err)
		}
		children = append(children, c)
	}
	return children, nil
}

// CloseIfChildrenComplete atomically completes parentID when every child is
// completed. The check and the transition are one SQL statement, so two
// racing callers never both observe "not yet closed". Childless parents and
// already-completed parents do not close.
func (s *SQLiteStore) CloseIfChildrenComplete(parentID string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE tasks SET status='completed', updated_at=?, completed_at=?
		WHERE id = ?
		  AND status IN ('pending', 'in_progress')
		  AND EXISTS (SELECT 1 FROM tasks c WHERE c.parent_id = tasks.id)
		  AND NOT EXISTS (
			SELECT 1 FROM tasks c
			WHERE c.parent_id = tasks.id AND c.status != 'completed'
		  )`,
		now, now, parentID,
	)
	if err != nil {
		return false, fmt.Errorf("close parent %s: %w", parentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const selectCols = `SELECT id, agent_id, title, description, status, priority, parent_id, created_at, updated_at, completed_at`

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*Task, error) {
	var t Task
	var status string
	var completedAt sql.NullTime
	err := sc.Scan(
		&t.ID, &t.AgentID, &t.Title, &t.Description, &status, &t.Priority, &t.ParentID,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
