// Package server implements the VibeCorp HTTP server: REST API over the
// simulation stores, login auth, and SSE streaming of live activity.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vibecorp/vibecorp/agent"
	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/config"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/server/api"
	"github.com/vibecorp/vibecorp/server/ws"
	"github.com/vibecorp/vibecorp/task"
)

// Deps bundles the stores and controls the server exposes.
type Deps struct {
	Agents   *agent.Store
	Tasks    task.Store
	Comms    comms.Store
	Memories *memory.Store
	Sim      api.SimControl
	Signals  *comms.SignalQueue
}

// Server is the VibeCorp HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	deps Deps
	hub  *ws.Hub

	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a Server with the given config, version, and dependencies.
func New(cfg config.Config, ver string, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		deps:      deps,
		hub:       ws.NewHub(logger),
		startTime: time.Now(),
		version:   ver,
	}
}

// Start registers routes, begins forwarding activity signals to SSE
// clients, and listens until the context is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.registerRoutes()
	if s.deps.Signals != nil {
		go s.hub.Pump(ctx, s.deps.Signals)
	}

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Agents:   s.deps.Agents,
		Tasks:    s.deps.Tasks,
		Comms:    s.deps.Comms,
		Memories: s.deps.Memories,
		Sim:      s.deps.Sim,
		Logger:   s.logger,
		Version:  s.version,
	}

	// Public routes
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// SSE — auth via query token because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleSSE streams activity events to dashboard clients.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("token"); token != "" {
		if _, err := verifyJWT(s.jwtSecret(), token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.hub.ServeSSE(w, r)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
