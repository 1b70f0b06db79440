package provider

import (
	"context"
	"strings"
)

// TemplateGenerator is the zero-dependency fallback backend. It echoes the
// situation prompt in a fixed sentence shape, so simulations run fully
// offline and deterministically.
type TemplateGenerator struct{}

// NewTemplate returns the offline template backend.
func NewTemplate() *TemplateGenerator { return &TemplateGenerator{} }

func (t *TemplateGenerator) Name() string { return "template" }

// Generate renders the situation into a short message. The persona prompt
// is ignored; templates have no voice.
func (t *TemplateGenerator) Generate(_ context.Context, _ string, situation string) (string, error) {
	s := strings.TrimSpace(situation)
	if s == "" {
		return "Nothing to add right now.", nil
	}
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
		s += "."
	}
	return s, nil
}

// Scripted cycles through a fixed list of responses. Tests use it to make
// generated text predictable.
type Scripted struct {
	responses []string
	idx       int
}

// NewScripted creates a backend that cycles through the given responses.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Generate(_ context.Context, _, _ string) (string, error) {
	if len(s.responses) == 0 {
		return "Acknowledged. On it.", nil
	}
	resp := s.responses[s.idx%len(s.responses)]
	s.idx++
	return resp, nil
}
