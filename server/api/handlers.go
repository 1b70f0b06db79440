// Package api implements the REST handlers over the simulation stores.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vibecorp/vibecorp/agent"
	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/task"
)

// SimControl starts and stops the simulation (agent runtimes plus the
// activity scheduler) as one unit.
type SimControl interface {
	StartSim() error
	StopSim()
	SimRunning() bool
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Agents   *agent.Store
	Tasks    task.Store
	Comms    comms.Store
	Memories *memory.Store
	Sim      SimControl
	Logger   *slog.Logger
	Version  string
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/agents", h.listAgents)
	mux.HandleFunc("GET /api/agents/{id}", h.getAgent)
	mux.HandleFunc("GET /api/agents/{id}/tasks", h.agentTasks)
	mux.HandleFunc("GET /api/agents/{id}/memories", h.agentMemories)

	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("GET /api/tasks/{id}/children", h.taskChildren)

	mux.HandleFunc("GET /api/channels", h.listChannels)
	mux.HandleFunc("GET /api/channels/{id}/messages", h.channelMessages)

	mux.HandleFunc("GET /api/sim", h.simStatus)
	mux.HandleFunc("POST /api/sim/start", h.startSim)
	mux.HandleFunc("POST /api/sim/stop", h.stopSim)

	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Agent handlers ---

func (h *Handlers) listAgents(w http.ResponseWriter, _ *http.Request) {
	agents, err := h.Agents.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if agents == nil {
		agents = []*agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handlers) getAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Agents.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) agentTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.OpenTasks(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) agentMemories(w http.ResponseWriter, r *http.Request) {
	items, err := h.Memories.Recall(r.PathValue("id"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*memory.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := task.Filter{
		AgentID: q.Get("agent_id"),
		Limit:   queryInt(r, "limit", 0),
	}
	if s := q.Get("status"); s != "" {
		st := task.Status(s)
		filter.Status = &st
	}

	tasks, err := h.Tasks.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// createTaskRequest is the body accepted by POST /api/tasks.
type createTaskRequest struct {
	AgentID     string `json:"agent_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	ParentID    string `json:"parent_id,omitempty"`
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AgentID == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "agent_id and title are required")
		return
	}
	if _, err := h.Agents.Get(req.AgentID); err != nil {
		writeError(w, http.StatusBadRequest, "unknown agent "+req.AgentID)
		return
	}
	spec := task.Spec{Title: req.Title, Description: req.Description, Priority: req.Priority}
	created, err := h.Tasks.Create(req.AgentID, spec, req.ParentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) taskChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.Tasks.ChildrenOf(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if children == nil {
		children = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, children)
}

// --- Channel handlers ---

func (h *Handlers) listChannels(w http.ResponseWriter, _ *http.Request) {
	channels, err := h.Comms.ListChannels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if channels == nil {
		channels = []*comms.Channel{}
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *Handlers) channelMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Comms.GetChannel(id); err != nil {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	msgs, err := h.Comms.History(id, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []*comms.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// --- Simulation control ---

func (h *Handlers) simStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.Sim.SimRunning()})
}

func (h *Handlers) startSim(w http.ResponseWriter, _ *http.Request) {
	if err := h.Sim.StartSim(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

func (h *Handlers) stopSim(w http.ResponseWriter, _ *http.Request) {
	h.Sim.StopSim()
	writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
