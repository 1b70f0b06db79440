package agent

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/decision"
	"github.com/vibecorp/vibecorp/internal/db"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/provider"
	"github.com/vibecorp/vibecorp/task"
	"github.com/vibecorp/vibecorp/tools"
)

type stepRand struct{ f float64 }

func (r stepRand) Float64() float64 { return r.f }
func (r stepRand) IntN(n int) int   { return 0 }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixture struct {
	runtime *Runtime
	tasks   task.Store
	comms   comms.Store
	agents  *Store
	signals *comms.SignalQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f, err := os.CreateTemp("", "vibecorp-runtime-*.db")
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

	taskStore := task.NewSQLiteStore(conn)
	commsStore := comms.NewSQLiteStore(conn)
	agentStore := NewStore(conn)
	memStore := memory.NewStore(conn)
	for _, init := range []func() error{
		taskStore.InitTables, commsStore.InitTables, agentStore.InitTables, memStore.InitTables,
	} {
		if err := init(); err != nil {
			t.Fatalf("InitTables: %v", err)
		}
	}

	penny := &Agent{ID: "penny", Name: "Penny", Role: decision.RoleProgrammer, Persona: "terse"}
	boss := &Agent{ID: "ceecee", Name: "CeeCee", Role: decision.RoleCEO, Persona: "upbeat"}
	for _, a := range []*Agent{penny, boss} {
		if err := agentStore.Upsert(a); err != nil {
			t.Fatalf("Upsert %s: %v", a.ID, err)
		}
	}

	// Fixed clock well in the past so the inbox window always covers
	// messages stamped with the wall clock by the store.
	clock := fixedClock{t: time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)}
	rnd := stepRand{f: 0.99} // share-update roll always misses
	signals := comms.NewSignalQueue(64)
	t.Cleanup(signals.Close)

	rt := NewRuntime(RuntimeConfig{
		Agent:    penny,
		Engine:   decision.NewEngine(decision.Options{Rand: rnd, Clock: clock}),
		Tasks:    taskStore,
		Comms:    commsStore,
		Agents:   agentStore,
		Memories: memStore,
		Tools: tools.NewRegistry(
			tools.NewSearchTool(),
			tools.NewFileTool(t.TempDir()),
		),
		Texter:  provider.NewTemplate(),
		Signals: signals,
		Rand:    rnd,
		Clock:   clock,
	})
	return &fixture{runtime: rt, tasks: taskStore, comms: commsStore, agents: agentStore, signals: signals}
}

// drainSignals empties the queue and returns the kinds seen.
func drainSignals(q *comms.SignalQueue) []comms.SignalKind {
	var kinds []comms.SignalKind
	for {
		select {
		case sig := <-q.Out():
			kinds = append(kinds, sig.Kind)
		default:
			return kinds
		}
	}
}

func TestRuntime_TaskLifecycleAcrossCycles(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	created, err := fx.tasks.Create("penny", task.Spec{Title: "Write release notes", Priority: 4}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Cycle 1: pending head task starts.
	if !fx.runtime.cycle(ctx) {
		t.Fatal("cycle 1 took no action")
	}
	got, _ := fx.tasks.Get(created.ID)
	if got.Status != task.StatusInProgress {
		t.Fatalf("after cycle 1: status = %s, want in_progress", got.Status)
	}

	// Cycle 2: no tool mapping for a general programmer task, so the agent
	// asks a clarifying question, which counts as progress.
	if !fx.runtime.cycle(ctx) {
		t.Fatal("cycle 2 took no action")
	}
	hist := channelHistory(t, fx.comms, comms.ChannelBrainstorming)
	if len(hist) != 1 || hist[0].SenderID != "penny" {
		t.Fatalf("brainstorming history = %v, want one question from penny", hist)
	}

	// Cycle 3: one action on a "write ..." task is enough to finish it.
	if !fx.runtime.cycle(ctx) {
		t.Fatal("cycle 3 took no action")
	}
	got, _ = fx.tasks.Get(created.ID)
	if got.Status != task.StatusCompleted {
		t.Fatalf("after cycle 3: status = %s, want completed", got.Status)
	}

	// Cycle 4: the completed root task is reported to the CEO by DM.
	if !fx.runtime.cycle(ctx) {
		t.Fatal("cycle 4 took no action")
	}
	dm, err := fx.comms.DirectChannel("penny", "ceecee")
	if err != nil {
		t.Fatalf("DirectChannel: %v", err)
	}
	msgs, _ := fx.comms.History(dm.ID, 10)
	if len(msgs) != 1 {
		t.Fatalf("dm history = %d messages, want the report", len(msgs))
	}

	// Cycle 5: everything handled; the agent idles.
	if fx.runtime.cycle(ctx) {
		t.Fatal("cycle 5 acted, want idle")
	}

	kinds := drainSignals(fx.signals)
	if len(kinds) == 0 {
		t.Error("no signals published across the lifecycle")
	}

	self, _ := fx.agents.Get("penny")
	if self.Status == "" || self.Status == "idle" {
		t.Errorf("status = %q, want updated by actions", self.Status)
	}
}

func TestRuntime_RepliesToTrigger(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	general, err := fx.comms.EnsureChannel(comms.ChannelGeneral)
	if err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}
	if _, err := fx.comms.Post(general.ID, "ceecee", "Penny, can you check the deploy?"); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if !fx.runtime.cycle(ctx) {
		t.Fatal("cycle took no action")
	}
	hist, _ := fx.comms.History(general.ID, 10)
	if len(hist) != 2 || hist[1].SenderID != "penny" {
		t.Fatalf("history = %d messages, want penny's reply appended", len(hist))
	}

	// The same message must not be answered again.
	if fx.runtime.cycle(ctx) {
		t.Fatal("second cycle acted on an already-handled message")
	}
}

func TestRuntime_CycleSurvivesPanic(t *testing.T) {
	fx := newFixture(t)
	// A nil tool registry makes useTool panic; force that path.
	fx.runtime.cfg.Tools = nil
	if _, err := fx.tasks.Create("penny", task.Spec{Title: "Fix login bug", Priority: 2}, ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx := context.Background()
	fx.runtime.cycle(ctx) // start
	// This cycle reaches the nil registry and must recover, not crash.
	if acted := fx.runtime.cycle(ctx); acted {
		t.Error("panicked cycle reported an action")
	}
}

// downGenerator always fails, simulating an unreachable text backend.
type downGenerator struct{}

func (downGenerator) Name() string { return "down" }
func (downGenerator) Generate(context.Context, string, string) (string, error) {
	return "", &provider.GenerationError{Backend: "down", Err: errors.New("backend unavailable")}
}

func TestRuntime_GenerationFailurePostsNothing(t *testing.T) {
	fx := newFixture(t)
	fx.runtime.cfg.Texter = downGenerator{}
	ctx := context.Background()

	general, err := fx.comms.EnsureChannel(comms.ChannelGeneral)
	if err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}
	if _, err := fx.comms.Post(general.ID, "ceecee", "Penny, can you check the deploy?"); err != nil {
		t.Fatalf("Post: %v", err)
	}

	// The reply is decided but the backend is down: no message goes out.
	if fx.runtime.cycle(ctx) {
		t.Fatal("cycle reported an action despite generation failure")
	}
	hist, _ := fx.comms.History(general.ID, 10)
	if len(hist) != 1 {
		t.Fatalf("history = %d messages, want only the original", len(hist))
	}

	// The message was consumed at decision time; it is dropped, not
	// retried with the broken backend every cycle.
	if fx.runtime.cycle(ctx) {
		t.Fatal("second cycle retried the dropped reply")
	}
	hist, _ = fx.comms.History(general.ID, 10)
	if len(hist) != 1 {
		t.Fatalf("history after retry cycle = %d messages, want 1", len(hist))
	}
}

// explodingTool fails every execution under the engine's search tool name.
type explodingTool struct{}

func (explodingTool) Name() string        { return "web_search" }
func (explodingTool) Description() string { return "always fails" }
func (explodingTool) Execute(context.Context, string, map[string]any) (string, error) {
	return "", &tools.ExecutionError{Tool: "web_search", Err: errors.New("search backend down")}
}

func TestRuntime_ToolFailureSignalsErrorAndLeavesTask(t *testing.T) {
	fx := newFixture(t)
	fx.runtime.cfg.Tools = tools.NewRegistry(explodingTool{})
	ctx := context.Background()

	created, err := fx.tasks.Create("penny", task.Spec{Title: "Research competitor pricing", Priority: 3}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !fx.runtime.cycle(ctx) {
		t.Fatal("start cycle took no action")
	}
	drainSignals(fx.signals)

	// The tool fails: the cycle reports no action, an error signal goes
	// out, and the task stays in progress for a later retry.
	if fx.runtime.cycle(ctx) {
		t.Fatal("failed tool cycle reported an action")
	}
	kinds := drainSignals(fx.signals)
	found := false
	for _, k := range kinds {
		if k == comms.SignalError {
			found = true
		}
	}
	if !found {
		t.Errorf("signals = %v, want an error signal", kinds)
	}
	got, _ := fx.tasks.Get(created.ID)
	if got.Status != task.StatusInProgress {
		t.Errorf("task status = %s, want in_progress left for retry", got.Status)
	}
}

func channelHistory(t *testing.T, store comms.Store, name string) []*comms.Message {
	t.Helper()
	ch, err := store.EnsureChannel(name)
	if err != nil {
		t.Fatalf("EnsureChannel %s: %v", name, err)
	}
	msgs, err := store.History(ch.ID, 50)
	if err != nil {
		t.Fatalf("History %s: %v", name, err)
	}
	return msgs
}
