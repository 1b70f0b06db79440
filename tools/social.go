package tools

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const socialSchema = `
CREATE TABLE IF NOT EXISTS social_posts (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// maxPostLen caps a simulated social post.
const maxPostLen = 280

// SocialTool posts to the company's simulated social feed. Posts land in a
// table, not on the internet.
type SocialTool struct {
	db *sql.DB
}

// NewSocialTool creates the social feed tool. Call InitTables before use.
func NewSocialTool(db *sql.DB) *SocialTool {
	return &SocialTool{db: db}
}

// InitTables creates the posts table.
func (s *SocialTool) InitTables() error {
	if _, err := s.db.Exec(socialSchema); err != nil {
		return fmt.Errorf("create social schema: %w", err)
	}
	return nil
}

func (s *SocialTool) Name() string { return "post_social" }

func (s *SocialTool) Description() string {
	return "Publish a post to the company social feed."
}

func (s *SocialTool) Execute(_ context.Context, agentID string, args map[string]any) (string, error) {
	message, err := stringArg(args, "message")
	if err != nil {
		return "", &ExecutionError{Tool: s.Name(), Err: err}
	}
	if len(message) > maxPostLen {
		message = message[:maxPostLen]
	}
	_, err = s.db.Exec(`INSERT INTO social_posts (id, agent_id, message, created_at) VALUES (?,?,?,?)`,
		uuid.New().String(), agentID, message, time.Now().UTC())
	if err != nil {
		return "", &ExecutionError{Tool: s.Name(), Err: fmt.Errorf("insert post: %w", err)}
	}
	return fmt.Sprintf("Posted: %s", message), nil
}

// Recent returns the latest posts, newest first.
func (s *SocialTool) Recent(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`SELECT message FROM social_posts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		posts = append(posts, m)
	}
	return posts, rows.Err()
}
