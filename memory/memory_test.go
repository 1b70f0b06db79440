package memory

import (
	"os"
	"testing"
	"time"

	"github.com/vibecorp/vibecorp/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "vibecorp-memory-*.db")
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

	store := NewStore(conn)
	if err := store.InitTables(); err != nil {
		t.Fatalf("InitTables: %v", err)
	}
	return store
}

func TestRememberAndRecall_Ranking(t *testing.T) {
	store := newTestStore(t)

	store.Remember("penny", KindObservation, "minor", "saw a typo", 2, 0)
	time.Sleep(2 * time.Millisecond)
	store.Remember("penny", KindWorkItem, "older critical", "auth redesign notes", 9, 0)
	time.Sleep(2 * time.Millisecond)
	store.Remember("penny", KindWorkItem, "newer critical", "prod incident", 9, 0)
	store.Remember("marty", KindWorkItem, "campaign", "tiktok plan", 8, 0)

	items, err := store.Recall("penny", 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3 (penny only)", len(items))
	}
	if items[0].Title != "newer critical" {
		t.Errorf("first = %q, want newer critical (importance then recency)", items[0].Title)
	}
	if items[1].Title != "older critical" {
		t.Errorf("second = %q, want older critical", items[1].Title)
	}
	if items[2].Title != "minor" {
		t.Errorf("third = %q, want minor", items[2].Title)
	}
}

func TestRemember_ClampsImportance(t *testing.T) {
	store := newTestStore(t)

	low, err := store.Remember("penny", KindObservation, "low", "", -3, 0)
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if low.Importance != 1 {
		t.Errorf("Importance = %d, want clamped to 1", low.Importance)
	}
	high, _ := store.Remember("penny", KindObservation, "high", "", 99, 0)
	if high.Importance != 10 {
		t.Errorf("Importance = %d, want clamped to 10", high.Importance)
	}
}

func TestRecall_HidesExpired(t *testing.T) {
	store := newTestStore(t)

	store.Remember("penny", KindObservation, "keeper", "", 5, 0)
	expired, err := store.Remember("penny", KindObservation, "stale", "", 8, time.Millisecond)
	if err != nil {
		t.Fatalf("Remember with ttl: %v", err)
	}
	if expired.ExpiresAt == nil {
		t.Fatal("ExpiresAt not set")
	}
	time.Sleep(5 * time.Millisecond)

	items, err := store.Recall("penny", 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(items) != 1 || items[0].Title != "keeper" {
		t.Fatalf("items = %v, want only the non-expired keeper", items)
	}
}

func TestTouch_RefreshesHighImportance(t *testing.T) {
	store := newTestStore(t)

	store.Remember("penny", KindWorkItem, "important", "", 8, 0)
	store.Remember("penny", KindObservation, "trivia", "", 2, 0)
	time.Sleep(2 * time.Millisecond)
	store.Remember("penny", KindWorkItem, "fresher but equal", "", 8, 0)

	n, err := store.Touch("penny", 7)
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if n != 2 {
		t.Fatalf("touched %d, want 2", n)
	}

	items, _ := store.Recall("penny", 10)
	// Both importance-8 items now share a refreshed last_accessed newer
	// than the trivia item, which Touch skipped.
	if items[2].Title != "trivia" {
		t.Errorf("last = %q, want trivia unrefreshed", items[2].Title)
	}
}
