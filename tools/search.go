package tools

import (
	"context"
	"fmt"
	"strings"
)

// searchResults are the canned lookups the simulation serves. Keys are
// scanned in order; the first key contained in the query wins.
var searchResults = []struct {
	key     string
	results []string
}{
	{"social media", []string{
		"Short-form video keeps outperforming static posts across platforms.",
		"Engagement peaks mid-morning and early evening on weekdays.",
	}},
	{"market", []string{
		"Analysts expect steady growth in the productivity software segment.",
		"Early-stage competitors are consolidating around subscription pricing.",
	}},
	{"best practices", []string{
		"Small, reviewable changes ship with fewer regressions.",
		"Deprecate loudly, remove quietly.",
	}},
	{"employee satisfaction", []string{
		"Regular one-on-ones correlate strongly with retention.",
		"Teams with clear ownership report higher satisfaction scores.",
	}},
	{"competitor", []string{
		"Competitor launch cadence has slowed over the last two quarters.",
	}},
}

var defaultResults = []string{
	"No strong signal found; consider narrowing the query.",
}

// SearchTool answers web searches from a fixed result table. The
// simulation never leaves the machine.
type SearchTool struct{}

// NewSearchTool creates the canned search tool.
func NewSearchTool() *SearchTool { return &SearchTool{} }

func (s *SearchTool) Name() string { return "web_search" }

func (s *SearchTool) Description() string {
	return "Search the web (simulated, canned results)."
}

func (s *SearchTool) Execute(_ context.Context, _ string, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", &ExecutionError{Tool: s.Name(), Err: err}
	}
	results := defaultResults
	q := strings.ToLower(query)
	for _, sr := range searchResults {
		if strings.Contains(q, sr.key) {
			results = sr.results
			break
		}
	}
	return fmt.Sprintf("Results for %q:\n- %s", query, strings.Join(results, "\n- ")), nil
}
