package decision

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vibecorp/vibecorp/task"
)

var titleCaser = cases.Title(language.English)

// decomposeRule is one row of the per-role decomposition table. When a
// keyword matches the parent task, the steps become its sub-tasks.
type decomposeRule struct {
	words []string
	steps []string
}

// decomposeTable drives Decompose. The {title} placeholder is replaced
// with the parent title. Rules are scanned in order; first match wins.
var decomposeTable = map[Role][]decomposeRule{
	RoleCEO: {
		{[]string{"strategy", "vision", "roadmap"}, []string{
			"review current company metrics",
			"draft strategy outline for {title}",
			"discuss outline with the team",
			"write final strategy document",
		}},
		{[]string{"budget", "funding"}, []string{
			"review current budget allocation",
			"plan adjustments for {title}",
			"announce budget decisions",
		}},
	},
	RoleMarketer: {
		{[]string{"campaign", "launch", "viral"}, []string{
			"research audience for {title}",
			"draft campaign messaging",
			"create social media posts",
			"post launch announcement",
		}},
		{[]string{"content", "brand"}, []string{
			"research trending topics",
			"draft content calendar for {title}",
			"write first content batch",
		}},
	},
	RoleProgrammer: {
		{[]string{"api", "backend", "system", "platform", "auth"}, []string{
			"design data model for {title}",
			"write core implementation",
			"write tests and fix bugs",
			"document the interface",
		}},
		{[]string{"bug", "incident"}, []string{
			"reproduce the issue in {title}",
			"write fix and regression test",
			"document root cause",
		}},
	},
	RoleHR: {
		{[]string{"hiring", "onboarding"}, []string{
			"draft role requirements for {title}",
			"plan interview process",
			"write onboarding checklist",
		}},
		{[]string{"culture", "team", "satisfaction"}, []string{
			"survey team sentiment",
			"plan initiatives for {title}",
			"announce plan to the team",
		}},
	},
}

// genericSteps is the fallback breakdown for complex tasks no rule claims.
var genericSteps = []string{
	"research background for {title}",
	"draft initial version of {title}",
	"review and revise the draft",
	"write final deliverable",
}

// Decompose breaks a complex task into ordered sub-task specs using the
// role's decomposition table. Earlier steps get more urgent priorities so
// leaf-first ordering works through them in sequence.
func Decompose(role Role, parent *task.Task) []task.Spec {
	text := strings.ToLower(parent.Title + " " + parent.Description)
	steps := genericSteps
	for _, rule := range decomposeTable[role] {
		matched := false
		for _, w := range rule.words {
			if strings.Contains(text, w) {
				matched = true
				break
			}
		}
		if matched {
			steps = rule.steps
			break
		}
	}

	specs := make([]task.Spec, 0, len(steps))
	for i, step := range steps {
		title := strings.ReplaceAll(step, "{title}", parent.Title)
		specs = append(specs, task.Spec{
			Title:       titleCaser.String(title),
			Description: fmt.Sprintf("Step %d of %d for: %s", i+1, len(steps), parent.Title),
			Priority:    parent.Priority + i,
		})
	}
	return specs
}
