package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Supervisor owns the lifecycle of a set of agent runtimes: one goroutine
// per agent, started together and stopped together.
type Supervisor struct {
	runtimes []*Runtime
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSupervisor creates a supervisor over the given runtimes.
func NewSupervisor(log *slog.Logger, runtimes ...*Runtime) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{runtimes: runtimes, log: log}
}

// Add registers another runtime. Only valid before Start.
func (s *Supervisor) Add(r *Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimes = append(s.runtimes, r)
}

// Start launches every runtime. It fails if the supervisor is already
// running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("supervisor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, rt := range s.runtimes {
		s.wg.Add(1)
		go func(rt *Runtime) {
			defer s.wg.Done()
			rt.Run(runCtx)
		}(rt)
	}
	s.log.Info("supervisor started", "agents", len(s.runtimes))
	return nil
}

// Stop cancels all runtimes and waits until every loop has returned.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("supervisor stopped")
}

// Running reports whether the runtimes are live.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
