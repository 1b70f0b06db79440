// Command vibecorpd runs the VibeCorp simulation daemon: the agent
// runtimes, the activity scheduler, and the HTTP API over one SQLite
// database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/vibecorp/vibecorp/agent"
	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/config"
	"github.com/vibecorp/vibecorp/decision"
	"github.com/vibecorp/vibecorp/internal/db"
	"github.com/vibecorp/vibecorp/internal/version"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/provider"
	"github.com/vibecorp/vibecorp/scheduler"
	"github.com/vibecorp/vibecorp/server"
	"github.com/vibecorp/vibecorp/task"
	"github.com/vibecorp/vibecorp/tools"
)

var (
	configPath = flag.String("config", "vibecorp.yaml", "path to config file")
	writeCfg   = flag.Bool("init", false, "write the default config to -config and exit")
	autostart  = flag.Bool("autostart", true, "start the simulation on boot")
)

func main() {
	flag.Parse()

	if *writeCfg {
		if err := config.DefaultConfig().Save(*configPath); err != nil {
			log.Fatalf("write default config: %v", err)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	logger.Info("starting vibecorpd",
		"version", version.Version,
		"commit", version.Commit,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return cfg, err
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	for _, dir := range []string{cfg.DataDir, cfg.Workspace} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	conn, err := db.Open(filepath.Join(cfg.DataDir, "vibecorp.db"))
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	agentStore := agent.NewStore(conn)
	taskStore := task.NewSQLiteStore(conn)
	commsStore := comms.NewSQLiteStore(conn)
	memStore := memory.NewStore(conn)
	budget := tools.NewBudgetTool(conn, 50000)
	social := tools.NewSocialTool(conn)
	for _, init := range []func() error{
		agentStore.InitTables, taskStore.InitTables, commsStore.InitTables,
		memStore.InitTables, budget.InitTables, social.InitTables,
	} {
		if err := init(); err != nil {
			return err
		}
	}

	roster, err := seed(cfg, agentStore, taskStore, commsStore)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	registry := tools.NewRegistry(
		budget,
		social,
		tools.NewFileTool(cfg.Workspace),
		tools.NewSearchTool(),
	)
	texter := newGenerator(cfg.Provider)
	signals := comms.NewSignalQueue(256)

	sup := agent.NewSupervisor(logger)
	for _, a := range roster {
		engine := decision.NewEngine(decision.Options{
			ReportPriorityMax: cfg.Decision.ReportPriorityMax,
			ShareUpdateChance: cfg.Decision.ShareUpdateChance,
			SeenCapacity:      cfg.Decision.SeenCapacity,
			SeenHorizon:       cfg.Decision.SeenHorizon,
		})
		sup.Add(agent.NewRuntime(agent.RuntimeConfig{
			Agent:       a,
			Engine:      engine,
			Tasks:       taskStore,
			Comms:       commsStore,
			Agents:      agentStore,
			Memories:    memStore,
			Tools:       registry,
			Texter:      texter,
			Signals:     signals,
			Logger:      logger,
			Reactive:    agent.Interval(cfg.Decision.Reactive),
			Idle:        agent.Interval(cfg.Decision.Idle),
			InboxWindow: cfg.Decision.InboxWindow,
		}))
	}

	sched := scheduler.New(cfg.Scheduler, scheduler.Stores{
		Agents:   agentStore,
		Tasks:    taskStore,
		Comms:    commsStore,
		Memories: memStore,
	}, signals, logger, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := &simControl{ctx: ctx, supervisor: sup, scheduler: sched}
	if *autostart {
		if err := sim.StartSim(); err != nil {
			return fmt.Errorf("autostart: %w", err)
		}
	}

	srv := server.New(*cfg, version.Version, logger, server.Deps{
		Agents:   agentStore,
		Tasks:    taskStore,
		Comms:    commsStore,
		Memories: memStore,
		Sim:      sim,
		Signals:  signals,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	sim.StopSim()
	signals.Close()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Stop(shutCtx); err != nil {
		logger.Error("server stop", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// newGenerator picks the text backend from config.
func newGenerator(cfg config.ProviderConfig) provider.Generator {
	if cfg.Kind == "openai" {
		return provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	}
	return provider.NewTemplate()
}

// starterTasks gives each role its first assignment on a fresh database.
var starterTasks = map[decision.Role]task.Spec{
	decision.RoleCEO:        {Title: "Draft Company Launch Plan", Description: "Where are we going and how loudly do we announce it?", Priority: 2},
	decision.RoleMarketer:   {Title: "Create Launch Announcement Campaign", Description: "Make the launch impossible to miss.", Priority: 3},
	decision.RoleProgrammer: {Title: "Build Landing Page Backend", Description: "Signup form, waitlist API, nothing fancy.", Priority: 3},
	decision.RoleHR:         {Title: "Write Onboarding Checklist", Description: "For the hires we will surely need.", Priority: 5},
}

// seed upserts the roster, ensures the group channels, and hands out
// starter tasks on first boot.
func seed(cfg *config.Config, agents *agent.Store, tasks task.Store, channels comms.Store) ([]*agent.Agent, error) {
	var roster []*agent.Agent
	for _, ac := range cfg.Agents {
		a := &agent.Agent{
			ID:      ac.ID,
			Name:    ac.Name,
			Role:    decision.Role(ac.Role),
			Persona: ac.Persona,
		}
		if err := agents.Upsert(a); err != nil {
			return nil, err
		}
		roster = append(roster, a)
	}

	for _, name := range []string{comms.ChannelGeneral, comms.ChannelRandom, comms.ChannelBrainstorming} {
		if _, err := channels.EnsureChannel(name); err != nil {
			return nil, err
		}
	}

	existing, err := tasks.List(task.Filter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return roster, nil
	}
	for _, a := range roster {
		spec, ok := starterTasks[a.Role]
		if !ok {
			continue
		}
		if _, err := tasks.Create(a.ID, spec, ""); err != nil {
			return nil, err
		}
	}
	return roster, nil
}

// simControl starts and stops the runtimes and the scheduler as one unit,
// satisfying the API's control surface.
type simControl struct {
	ctx        context.Context
	supervisor *agent.Supervisor
	scheduler  *scheduler.Scheduler

	mu sync.Mutex
}

func (s *simControl) StartSim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.supervisor.Start(s.ctx); err != nil {
		return err
	}
	if err := s.scheduler.Start(s.ctx); err != nil {
		s.supervisor.Stop()
		return err
	}
	return nil
}

func (s *simControl) StopSim() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler.Stop()
	s.supervisor.Stop()
}

func (s *simControl) SimRunning() bool {
	return s.supervisor.Running()
}
