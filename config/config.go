// Package config defines the vibecorp application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level vibecorp configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Agents    []AgentConfig   `json:"agents" yaml:"agents"`
	Provider  ProviderConfig  `json:"provider" yaml:"provider"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Decision  DecisionConfig  `json:"decision" yaml:"decision"`
	DataDir   string          `json:"data_dir" yaml:"data_dir"`
	Workspace string          `json:"workspace" yaml:"workspace"` // root for simulated file writes
	LogLevel  string          `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// AuthConfig controls dashboard authentication.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass"` // bcrypt hash
}

// AgentConfig defines a single simulated agent.
type AgentConfig struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Role    string `json:"role" yaml:"role"` // ceo, marketer, programmer, hr
	Persona string `json:"persona" yaml:"persona"`
}

// ProviderConfig selects the text-generation backend.
type ProviderConfig struct {
	Kind    string `json:"kind" yaml:"kind"` // "template" or "openai"
	APIKey  string `json:"api_key,omitempty" yaml:"api_key"`
	Model   string `json:"model,omitempty" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`
}

// Interval is a randomized wait range for background loops.
type Interval struct {
	Min time.Duration `json:"min" yaml:"min"`
	Max time.Duration `json:"max" yaml:"max"`
}

// SchedulerConfig sets the cadence of the synthetic-activity generators.
type SchedulerConfig struct {
	Tasks    Interval `json:"tasks" yaml:"tasks"`
	Messages Interval `json:"messages" yaml:"messages"`
	Statuses Interval `json:"statuses" yaml:"statuses"`
	Memories Interval `json:"memories" yaml:"memories"`
}

// DecisionConfig tunes the per-agent decision cascade and cycle timing.
type DecisionConfig struct {
	// Completed tasks at or below this priority are reported upward.
	ReportPriorityMax int `json:"report_priority_max" yaml:"report_priority_max"`
	// How far back the runtime looks for inbound messages each cycle.
	InboxWindow time.Duration `json:"inbox_window" yaml:"inbox_window"`
	// Seen-message dedup window bounds.
	SeenCapacity int           `json:"seen_capacity" yaml:"seen_capacity"`
	SeenHorizon  time.Duration `json:"seen_horizon" yaml:"seen_horizon"`
	// Chance of sharing an update when otherwise idle.
	ShareUpdateChance float64 `json:"share_update_chance" yaml:"share_update_chance"`
	// Wait between cycles: Reactive after an action, Idle otherwise.
	Reactive Interval `json:"reactive" yaml:"reactive"`
	Idle     Interval `json:"idle" yaml:"idle"`
}

// DefaultConfig returns a config with sensible defaults: the four VibeCorp
// personas, the offline template provider, and local data/workspace
// directories.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		DataDir:   "./data",
		Workspace: "./workspace",
		LogLevel:  "info",
		Provider:  ProviderConfig{Kind: "template"},
		Scheduler: SchedulerConfig{
			Tasks:    Interval{Min: 3 * time.Minute, Max: 6 * time.Minute},
			Messages: Interval{Min: 1 * time.Minute, Max: 5 * time.Minute},
			Statuses: Interval{Min: 90 * time.Second, Max: 3 * time.Minute},
			Memories: Interval{Min: 90 * time.Second, Max: 3 * time.Minute},
		},
		Decision: DecisionConfig{
			ReportPriorityMax: 2,
			InboxWindow:       2 * time.Minute,
			SeenCapacity:      512,
			SeenHorizon:       30 * time.Minute,
			ShareUpdateChance: 0.3,
			Reactive:          Interval{Min: 5 * time.Second, Max: 10 * time.Second},
			Idle:              Interval{Min: 15 * time.Second, Max: 30 * time.Second},
		},
		Agents: []AgentConfig{
			{
				ID:      "ceecee",
				Name:    "CeeCee",
				Role:    "ceo",
				Persona: "Overly enthusiastic startup CEO. Everything is game-changing and disruptive. Sets impossible deadlines and chases every trend.",
			},
			{
				ID:      "marty",
				Name:    "Marty",
				Role:    "marketer",
				Persona: "Social-media obsessed marketing guru. Wants to make everything go viral and measures life in engagement metrics.",
			},
			{
				ID:      "penny",
				Name:    "Penny",
				Role:    "programmer",
				Persona: "Pragmatic programmer who implements everyone else's wild ideas. Blunt about technical constraints, protective of code quality.",
			},
			{
				ID:      "herb",
				Name:    "Herb",
				Role:    "hr",
				Persona: "Overly friendly HR representative. Believes every problem, including technical debt, can be solved with a team-building exercise.",
			},
		},
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks config fields that would otherwise fail deep inside the
// simulation.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent %q: id is required", a.Name)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Role == "" {
			return fmt.Errorf("agent %s: role is required", a.ID)
		}
	}
	if c.Decision.ShareUpdateChance < 0 || c.Decision.ShareUpdateChance > 1 {
		return fmt.Errorf("decision.share_update_chance must be in [0, 1]")
	}
	return nil
}

// Save writes the config to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
