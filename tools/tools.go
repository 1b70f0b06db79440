// Package tools implements the simulated tools agents execute against
// their tasks. Every tool effect is local: a database row or a file under
// the workspace, never a real external call.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool is one executable capability.
type Tool interface {
	// Name returns the tool identifier used in decisions and logs.
	Name() string

	// Description says what the tool does, for the API surface.
	Description() string

	// Execute runs the tool and returns a short human-readable result.
	Execute(ctx context.Context, agentID string, args map[string]any) (string, error)
}

// ExecutionError wraps a tool failure with the tool's name.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Registry holds the tools available to a simulation. It is built
// explicitly at startup and passed to whoever needs it.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stringArg pulls a required string argument out of a tool args map.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// floatArg pulls a numeric argument, accepting both float64 and int.
func floatArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}
