package tools

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const budgetSchema = `
CREATE TABLE IF NOT EXISTS budget_entries (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	action     TEXT NOT NULL,
	amount     REAL NOT NULL,
	note       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
`

// BudgetTool manages the company budget as an append-only ledger. The
// "view" action reads the balance without writing anything, so viewing is
// idempotent; "allocate" and "spend" append entries.
type BudgetTool struct {
	db      *sql.DB
	opening float64
}

// NewBudgetTool creates the ledger-backed budget tool with the given
// opening balance. Call InitTables before use.
func NewBudgetTool(db *sql.DB, opening float64) *BudgetTool {
	return &BudgetTool{db: db, opening: opening}
}

// InitTables creates the ledger table.
func (b *BudgetTool) InitTables() error {
	if _, err := b.db.Exec(budgetSchema); err != nil {
		return fmt.Errorf("create budget schema: %w", err)
	}
	return nil
}

func (b *BudgetTool) Name() string { return "manage_budget" }

func (b *BudgetTool) Description() string {
	return "View the company budget or record an allocation or expense."
}

// Execute dispatches on the "action" argument: view, allocate, or spend.
func (b *BudgetTool) Execute(_ context.Context, agentID string, args map[string]any) (string, error) {
	action, err := stringArg(args, "action")
	if err != nil {
		return "", &ExecutionError{Tool: b.Name(), Err: err}
	}

	switch action {
	case "view":
		balance, err := b.Balance()
		if err != nil {
			return "", &ExecutionError{Tool: b.Name(), Err: err}
		}
		return fmt.Sprintf("Current budget balance: $%.2f", balance), nil

	case "allocate", "spend":
		amount, err := floatArg(args, "amount")
		if err != nil {
			return "", &ExecutionError{Tool: b.Name(), Err: err}
		}
		if amount <= 0 {
			return "", &ExecutionError{Tool: b.Name(), Err: fmt.Errorf("amount must be positive")}
		}
		note, _ := args["note"].(string)
		if err := b.append(agentID, action, amount, note); err != nil {
			return "", &ExecutionError{Tool: b.Name(), Err: err}
		}
		balance, err := b.Balance()
		if err != nil {
			return "", &ExecutionError{Tool: b.Name(), Err: err}
		}
		return fmt.Sprintf("Recorded %s of $%.2f. New balance: $%.2f", action, amount, balance), nil

	default:
		return "", &ExecutionError{Tool: b.Name(), Err: fmt.Errorf("unknown action %q", action)}
	}
}

func (b *BudgetTool) append(agentID, action string, amount float64, note string) error {
	_, err := b.db.Exec(`
		INSERT INTO budget_entries (id, agent_id, action, amount, note, created_at)
		VALUES (?,?,?,?,?,?)`,
		uuid.New().String(), agentID, action, amount, note, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// Balance folds the ledger over the opening balance: allocations add,
// spending subtracts.
func (b *BudgetTool) Balance() (float64, error) {
	row := b.db.QueryRow(`
		SELECT COALESCE(SUM(CASE action WHEN 'allocate' THEN amount ELSE -amount END), 0)
		FROM budget_entries`)
	var delta float64
	if err := row.Scan(&delta); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return b.opening + delta, nil
}
