// Package scheduler drives the background generators that keep the
// simulation lively: fresh tasks, ambient chatter, status changes, and
// stray memories, each on its own randomized cadence.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vibecorp/vibecorp/agent"
	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/config"
	"github.com/vibecorp/vibecorp/decision"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/task"
)

// Stores bundles the state a scheduler writes into.
type Stores struct {
	Agents   *agent.Store
	Tasks    task.Store
	Comms    comms.Store
	Memories *memory.Store
}

// Scheduler runs one goroutine per generator. Generator errors are logged
// and the loop continues; a failed tick never stops the cadence.
type Scheduler struct {
	cfg     config.SchedulerConfig
	stores  Stores
	signals *comms.SignalQueue
	log     *slog.Logger
	rand    decision.Rand
	clock   decision.Clock

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a scheduler. Nil Rand/Clock pick the system ones.
func New(cfg config.SchedulerConfig, stores Stores, signals *comms.SignalQueue, log *slog.Logger, rnd decision.Rand, clock decision.Clock) *Scheduler {
	if rnd == nil {
		rnd = decision.SystemRand()
	}
	if clock == nil {
		clock = decision.SystemClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cfg: cfg, stores: stores, signals: signals, log: log, rand: rnd, clock: clock}
}

// Start launches the generator loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	loops := []struct {
		name     string
		interval config.Interval
		tick     func() error
	}{
		{"tasks", s.cfg.Tasks, s.generateTask},
		{"messages", s.cfg.Messages, s.generateMessage},
		{"statuses", s.cfg.Statuses, s.generateStatus},
		{"memories", s.cfg.Memories, s.generateMemory},
	}
	for _, l := range loops {
		s.wg.Add(1)
		go s.loop(runCtx, l.name, l.interval, l.tick)
	}
	s.log.Info("scheduler started")
	return nil
}

// Stop cancels the loops and waits for them to exit.
func (s *Scheduler) Stop() {
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
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval config.Interval, tick func() error) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.wait(interval)):
		}
		if err := tick(); err != nil {
			s.log.Error("generator tick failed", "generator", name, "error", err)
		}
	}
}

// wait picks a random duration inside the interval.
func (s *Scheduler) wait(i config.Interval) time.Duration {
	if i.Max <= i.Min {
		if i.Min <= 0 {
			return time.Minute
		}
		return i.Min
	}
	return i.Min + time.Duration(s.rand.IntN(int(i.Max-i.Min)))
}

// pickAgent returns a random agent from the roster.
func (s *Scheduler) pickAgent() (*agent.Agent, error) {
	agents, err := s.stores.Agents.List()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents in roster")
	}
	return agents[s.rand.IntN(len(agents))], nil
}

func (s *Scheduler) signal(kind comms.SignalKind, agentID, detail string) {
	if s.signals == nil {
		return
	}
	s.signals.Publish(comms.Signal{Kind: kind, AgentID: agentID, Detail: detail, At: s.clock.Now()})
}
