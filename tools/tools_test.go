package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vibecorp/vibecorp/internal/db"
)

func newTestDB(t *testing.T) *BudgetTool {
	t.Helper()
	f, err := os.CreateTemp("", "vibecorp-tools-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	budget := NewBudgetTool(conn, 10000)
	if err := budget.InitTables(); err != nil {
		t.Fatalf("InitTables: %v", err)
	}
	return budget
}

func TestBudget_ViewIsIdempotent(t *testing.T) {
	budget := newTestDB(t)
	ctx := context.Background()

	first, err := budget.Execute(ctx, "ceecee", map[string]any{"action": "view"})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := budget.Execute(ctx, "ceecee", map[string]any{"action": "view"})
		if err != nil {
			t.Fatalf("view %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("view %d changed: %q vs %q", i, again, first)
		}
	}
	if !strings.Contains(first, "10000.00") {
		t.Errorf("view = %q, want opening balance", first)
	}
}

func TestBudget_LedgerFolds(t *testing.T) {
	budget := newTestDB(t)
	ctx := context.Background()

	if _, err := budget.Execute(ctx, "ceecee", map[string]any{"action": "allocate", "amount": 500.0, "note": "marketing"}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := budget.Execute(ctx, "marty", map[string]any{"action": "spend", "amount": 200.0}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	balance, err := budget.Balance()
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 10300 {
		t.Errorf("balance = %.2f, want 10300", balance)
	}
}

func TestBudget_RejectsBadInput(t *testing.T) {
	budget := newTestDB(t)
	ctx := context.Background()

	cases := []map[string]any{
		{},
		{"action": "launder"},
		{"action": "spend"},
		{"action": "spend", "amount": -5.0},
		{"action": "spend", "amount": "lots"},
	}
	for i, args := range cases {
		_, err := budget.Execute(ctx, "x", args)
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Errorf("case %d: err = %v, want ExecutionError", i, err)
		}
	}
}

func TestFileTool_WritesInsideWorkspace(t *testing.T) {
	root := t.TempDir()
	ft := NewFileTool(root)

	out, err := ft.Execute(context.Background(), "penny", map[string]any{
		"path":    "src/notes.md",
		"content": "hello",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "src/notes.md") {
		t.Errorf("result = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(root, "src", "notes.md"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("read back: %q, %v", data, err)
	}
}

func TestFileTool_RejectsEscapes(t *testing.T) {
	ft := NewFileTool(t.TempDir())
	for _, p := range []string{"/etc/passwd", "../outside.txt", "a/../../outside.txt"} {
		_, err := ft.Execute(context.Background(), "penny", map[string]any{"path": p, "content": "x"})
		if err == nil {
			t.Errorf("path %q accepted", p)
		}
	}
}

func TestSearchTool_CannedAndDeterministic(t *testing.T) {
	st := NewSearchTool()
	args := map[string]any{"query": "social media trends: launch"}

	first, err := st.Execute(context.Background(), "marty", args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	second, _ := st.Execute(context.Background(), "marty", args)
	if first != second {
		t.Error("same query returned different results")
	}
	if !strings.Contains(first, "video") {
		t.Errorf("result = %q, want the social media canned entry", first)
	}

	fallback, _ := st.Execute(context.Background(), "marty", map[string]any{"query": "zorgblatt"})
	if !strings.Contains(fallback, "No strong signal") {
		t.Errorf("fallback = %q", fallback)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewSearchTool(), NewFileTool(t.TempDir()))
	if _, ok := r.Get("web_search"); !ok {
		t.Error("web_search not registered")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("unknown tool found")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "web_search" || names[1] != "write_file" {
		t.Errorf("names = %v, want sorted pair", names)
	}
}
