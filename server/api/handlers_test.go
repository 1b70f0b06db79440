package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/vibecorp/vibecorp/agent"
	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/decision"
	"github.com/vibecorp/vibecorp/internal/db"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/task"
)

type fakeSim struct{ running bool }

func (f *fakeSim) StartSim() error  { f.running = true; return nil }
func (f *fakeSim) StopSim()         { f.running = false }
func (f *fakeSim) SimRunning() bool { return f.running }

type fixture struct {
	mux   *http.ServeMux
	sim   *fakeSim
	tasks task.Store
	comms comms.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f, err := os.CreateTemp("", "vibecorp-api-*.db")
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

	agents := agent.NewStore(conn)
	tasks := task.NewSQLiteStore(conn)
	channels := comms.NewSQLiteStore(conn)
	memories := memory.NewStore(conn)
	for _, init := range []func() error{
		agents.InitTables, tasks.InitTables, channels.InitTables, memories.InitTables,
	} {
		if err := init(); err != nil {
			t.Fatalf("InitTables: %v", err)
		}
	}

	if err := agents.Upsert(&agent.Agent{ID: "penny", Name: "Penny", Role: decision.RoleProgrammer}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	sim := &fakeSim{}
	h := &Handlers{
		Agents:   agents,
		Tasks:    tasks,
		Comms:    channels,
		Memories: memories,
		Sim:      sim,
		Version:  "test",
	}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &fixture{mux: mux, sim: sim, tasks: tasks, comms: channels}
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestListAgents(t *testing.T) {
	fx := newFixture(t)
	rr := do(t, fx.mux, http.MethodGet, "/api/agents", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var agents []*agent.Agent
	if err := json.NewDecoder(rr.Body).Decode(&agents); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "penny" {
		t.Errorf("agents = %v", agents)
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	fx := newFixture(t)
	rr := do(t, fx.mux, http.MethodGet, "/api/agents/ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	fx := newFixture(t)

	rr := do(t, fx.mux, http.MethodPost, "/api/tasks",
		`{"agent_id":"penny","title":"Fix login bug","priority":2}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created task.Task
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != task.StatusPending {
		t.Fatalf("created = %+v", created)
	}

	rr = do(t, fx.mux, http.MethodGet, "/api/tasks/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	rr = do(t, fx.mux, http.MethodGet, "/api/agents/penny/tasks", "")
	var open []*task.Task
	json.NewDecoder(rr.Body).Decode(&open) //nolint:errcheck
	if len(open) != 1 {
		t.Errorf("open tasks = %d, want 1", len(open))
	}
}

func TestCreateTask_Validation(t *testing.T) {
	fx := newFixture(t)

	for _, body := range []string{
		`{`,
		`{"title":"no agent"}`,
		`{"agent_id":"ghost","title":"unknown agent"}`,
	} {
		rr := do(t, fx.mux, http.MethodPost, "/api/tasks", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestListTasks_StatusFilter(t *testing.T) {
	fx := newFixture(t)
	created, err := fx.tasks.Create("penny", task.Spec{Title: "A", Priority: 3}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.tasks.Create("penny", task.Spec{Title: "B", Priority: 4}, ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fx.tasks.Transition(created.ID, task.StatusInProgress); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	rr := do(t, fx.mux, http.MethodGet, "/api/tasks?status=in_progress", "")
	var tasks []*task.Task
	json.NewDecoder(rr.Body).Decode(&tasks) //nolint:errcheck
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("filtered = %v", tasks)
	}
}

func TestChannelMessages(t *testing.T) {
	fx := newFixture(t)
	ch, err := fx.comms.EnsureChannel(comms.ChannelGeneral)
	if err != nil {
		t.Fatalf("EnsureChannel: %v", err)
	}
	if _, err := fx.comms.Post(ch.ID, "penny", "hello"); err != nil {
		t.Fatalf("Post: %v", err)
	}

	rr := do(t, fx.mux, http.MethodGet, "/api/channels/"+ch.ID+"/messages", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var msgs []*comms.Message
	json.NewDecoder(rr.Body).Decode(&msgs) //nolint:errcheck
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("messages = %v", msgs)
	}

	rr = do(t, fx.mux, http.MethodGet, "/api/channels/ghost/messages", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown channel status = %d, want 404", rr.Code)
	}
}

func TestSimControlEndpoints(t *testing.T) {
	fx := newFixture(t)

	rr := do(t, fx.mux, http.MethodGet, "/api/sim", "")
	if got := rr.Body.String(); !bytes.Contains([]byte(got), []byte(`"running":false`)) {
		t.Errorf("initial sim status = %s", got)
	}

	if rr := do(t, fx.mux, http.MethodPost, "/api/sim/start", ""); rr.Code != http.StatusOK {
		t.Fatalf("start status = %d", rr.Code)
	}
	if !fx.sim.running {
		t.Error("sim not started")
	}
	if rr := do(t, fx.mux, http.MethodPost, "/api/sim/stop", ""); rr.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rr.Code)
	}
	if fx.sim.running {
		t.Error("sim not stopped")
	}
}
