package decision

import (
	"strings"

	"github.com/vibecorp/vibecorp/task"
)

// Category is the work category a single classification pass assigns to a
// task from its title and description.
type Category string

const (
	CategoryBudget   Category = "budget"
	CategoryResearch Category = "research"
	CategorySocial   Category = "social"
	CategoryCode     Category = "code"
	CategoryDocs     Category = "docs"
	CategoryPeople   Category = "people"
	CategoryGeneral  Category = "general"
)

// categoryKeywords is scanned in order; the first matching set wins.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryBudget, []string{"budget", "finance", "funding", "cost", "spend"}},
	{CategoryCode, []string{"api", "code", "auth", "login", "bug", "deploy", "database", "refactor", "backend", "security"}},
	{CategoryDocs, []string{"documentation", "document", "docs", "handbook", "readme"}},
	{CategorySocial, []string{"social media", "twitter", "tiktok", "campaign", "viral", "hashtag", "influencer", "content"}},
	{CategoryPeople, []string{"team building", "hiring", "culture", "onboarding", "satisfaction", "policy", "morale"}},
	{CategoryResearch, []string{"research", "analyze", "analysis", "investigate", "survey", "trends", "competitor"}},
}

// Classify assigns a task to a work category in a single pass over its
// title and description.
func Classify(t *task.Task) Category {
	text := strings.ToLower(t.Title + " " + t.Description)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(text, w) {
				return ck.category
			}
		}
	}
	return CategoryGeneral
}

// complexWords mark tasks that deserve decomposition into sub-tasks.
var complexWords = []string{"build", "implement", "system", "develop", "platform", "overhaul", "redesign", "architecture"}

// atomicWords mark single actions that should never be decomposed even
// when a complex word also appears.
var atomicWords = []string{"research", "review", "draft", "post", "email", "call", "reply", "update", "fix"}

// LooksComplex reports whether the task should be decomposed rather than
// worked directly.
func LooksComplex(t *task.Task) bool {
	text := strings.ToLower(t.Title + " " + t.Description)
	complex := false
	for _, w := range complexWords {
		if strings.Contains(text, w) {
			complex = true
			break
		}
	}
	if !complex {
		return false
	}
	title := strings.ToLower(t.Title)
	for _, w := range atomicWords {
		if strings.HasPrefix(title, w) {
			return false
		}
	}
	return true
}

// Deliverable verbs self-complete after one action; exchange verbs after
// one exchange. Either way a single recorded action is enough. Every verb
// the decomposition tables put at the start of a sub-task title must appear
// here, or the sub-task can never finish and its parent never closes.
var (
	deliverableVerbs = []string{
		"create", "design", "write", "draft", "plan", "post", "update",
		"fix", "document", "prepare", "research", "review", "survey",
		"reproduce",
	}
	exchangeVerbs = []string{"discuss", "coordinate", "sync", "brainstorm", "share", "announce", "ask"}
)

// DoneEnough is the deterministic completion heuristic: a leaf task counts
// as finished once at least one action landed and its title starts with a
// one-shot deliverable or exchange verb. Tasks matching neither verb set
// are never auto-completed by this heuristic.
func DoneEnough(t *task.Task, actions int) bool {
	if actions < 1 {
		return false
	}
	title := strings.ToLower(strings.TrimSpace(t.Title))
	for _, v := range deliverableVerbs {
		if strings.HasPrefix(title, v) {
			return true
		}
	}
	for _, v := range exchangeVerbs {
		if strings.HasPrefix(title, v) {
			return true
		}
	}
	return false
}

// triggerPhrases mark an inbound message as requesting a response.
var triggerPhrases = []string{
	"can you", "could you", "please", "need your input", "need your help",
	"what do you think", "thoughts", "any update", "help with",
}

// IsTrigger reports whether the message content asks for a response.
func IsTrigger(content string) bool {
	text := strings.ToLower(content)
	for _, p := range triggerPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// helpRouting maps keywords in a blocked task's title to the role best
// placed to help. Scanned in order, first match wins.
var helpRouting = []struct {
	role  Role
	words []string
}{
	{RoleProgrammer, []string{"api", "code", "auth", "login", "bug", "deploy", "database", "backend", "security"}},
	{RoleMarketer, []string{"campaign", "social", "content", "brand", "launch", "viral"}},
	{RoleHR, []string{"hiring", "team", "culture", "policy", "onboarding"}},
	{RoleCEO, []string{"budget", "strategy", "vision", "funding", "roadmap"}},
}

// HelpRole returns the role responsible for topics in the task title.
func HelpRole(title string) (Role, bool) {
	text := strings.ToLower(title)
	for _, hr := range helpRouting {
		for _, w := range hr.words {
			if strings.Contains(text, w) {
				return hr.role, true
			}
		}
	}
	return "", false
}

// reportKeywords mark a completed task as a deliverable worth reporting
// even when it is neither urgent nor a root task.
var reportKeywords = []string{"report", "deliverable", "launch", "release", "milestone", "strategy"}

// Reportable reports whether a completed task should be reported to the
// agent's superior: urgent enough, a root task, or a named deliverable.
// The filter exists to avoid spamming trivial completions upward.
func Reportable(t *task.Task, priorityMax int) bool {
	if t.Status != task.StatusCompleted {
		return false
	}
	if t.Priority <= priorityMax {
		return true
	}
	if t.Root() {
		return true
	}
	title := strings.ToLower(t.Title)
	for _, w := range reportKeywords {
		if strings.Contains(title, w) {
			return true
		}
	}
	return false
}

// RoleChannel returns the group channel where a role asks clarifying
// questions and thinks out loud.
func RoleChannel(r Role) string {
	switch r {
	case RoleProgrammer:
		return "#brainstorming"
	case RoleMarketer:
		return "#random"
	default:
		return "#general"
	}
}

// toolRule is one row of the declarative (role, category) → tool mapping.
// The {title} placeholder in argument values is replaced with the task
// title at decision time.
type toolRule struct {
	Tool string
	Args map[string]string
}

// toolTable maps (role, category) pairs to tool invocations. Pairs absent
// from the table fall back to a clarifying question on the role's channel.
var toolTable = map[Role]map[Category]toolRule{
	RoleCEO: {
		CategoryBudget:   {Tool: "manage_budget", Args: map[string]string{"action": "view"}},
		CategoryResearch: {Tool: "web_search", Args: map[string]string{"query": "market opportunities: {title}"}},
	},
	RoleMarketer: {
		CategorySocial:   {Tool: "post_social", Args: map[string]string{"message": "Big things coming at VibeCorp: {title} #Innovation #VibeCorp"}},
		CategoryResearch: {Tool: "web_search", Args: map[string]string{"query": "social media trends: {title}"}},
	},
	RoleProgrammer: {
		CategoryCode:     {Tool: "write_file", Args: map[string]string{"path": "src/{slug}.go", "content": "// {title}\n// Generated implementation sketch.\n"}},
		CategoryDocs:     {Tool: "write_file", Args: map[string]string{"path": "docs/{slug}.md", "content": "# {title}\n\nNotes and decisions.\n"}},
		CategoryResearch: {Tool: "web_search", Args: map[string]string{"query": "best practices: {title}"}},
	},
	RoleHR: {
		CategoryPeople:   {Tool: "manage_budget", Args: map[string]string{"action": "view"}},
		CategoryResearch: {Tool: "web_search", Args: map[string]string{"query": "employee satisfaction: {title}"}},
		CategoryBudget:   {Tool: "manage_budget", Args: map[string]string{"action": "view"}},
	},
}

// ToolFor resolves the declarative tool mapping for a task. The second
// return is false when no mapping exists and the agent should ask a
// clarifying question instead.
func ToolFor(role Role, t *task.Task) (string, map[string]any, bool) {
	rules, ok := toolTable[role]
	if !ok {
		return "", nil, false
	}
	rule, ok := rules[Classify(t)]
	if !ok {
		return "", nil, false
	}
	args := make(map[string]any, len(rule.Args))
	for k, v := range rule.Args {
		v = strings.ReplaceAll(v, "{title}", t.Title)
		v = strings.ReplaceAll(v, "{slug}", slugify(t.Title))
		args[k] = v
	}
	return rule.Tool, args, true
}

// slugify converts a title to a safe lowercase file stem.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
