// Package provider generates the surface text agents post to channels.
// Decisions are made by the rule cascade; a provider only phrases them.
package provider

import (
	"context"
	"fmt"
)

// Generator produces one piece of message text from a persona prompt and a
// situation prompt.
type Generator interface {
	// Name returns the backend identifier (e.g., "openai", "template").
	Name() string

	// Generate returns the message text for the given prompts.
	Generate(ctx context.Context, persona, situation string) (string, error)
}

// GenerationError wraps a backend failure with the backend's name so the
// caller can log which backend misbehaved.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("provider %s: generate: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
