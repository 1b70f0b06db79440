package decision

import (
	"fmt"
	"time"

	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/task"
)

// Options tunes a single engine. Zero values pick the defaults.
type Options struct {
	// ReportPriorityMax: completed tasks at or below this priority are
	// always reported upward.
	ReportPriorityMax int
	// ShareUpdateChance is the per-cycle probability of sharing a finished
	// piece of work in #general when nothing else demands attention.
	ShareUpdateChance float64
	// SeenCapacity bounds the handled-message window.
	SeenCapacity int
	// SeenHorizon ages handled messages out of the window.
	SeenHorizon time.Duration

	Rand  Rand
	Clock Clock
}

// Engine runs the rule cascade for one agent. Not safe for concurrent use;
// each runtime owns exactly one.
type Engine struct {
	opts Options

	seen     *seenWindow
	reported map[string]bool // task IDs already reported upward
	asked    map[string]bool // blocked task IDs already escalated
	shared   map[string]bool // completed task IDs already shared
	acted    map[string]int  // actions taken per open task
}

// NewEngine builds an engine with the given options.
func NewEngine(opts Options) *Engine {
	if opts.ReportPriorityMax <= 0 {
		opts.ReportPriorityMax = 3
	}
	if opts.ShareUpdateChance <= 0 {
		opts.ShareUpdateChance = 0.15
	}
	if opts.Rand == nil {
		opts.Rand = SystemRand()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &Engine{
		opts:     opts,
		seen:     newSeenWindow(opts.SeenCapacity, opts.SeenHorizon),
		reported: make(map[string]bool),
		asked:    make(map[string]bool),
		shared:   make(map[string]bool),
		acted:    make(map[string]int),
	}
}

// MarkActed records one completed action against a task. The runtime calls
// it after a tool execution or message for the task actually lands, so the
// completion heuristic only counts work that happened.
func (e *Engine) MarkActed(taskID string) {
	e.acted[taskID]++
}

// Forget drops per-task bookkeeping for a task that left the open set.
func (e *Engine) Forget(taskID string) {
	delete(e.acted, taskID)
	delete(e.asked, taskID)
}

// Decide evaluates the cascade against one observation and returns exactly
// one action. Rules are checked in fixed order; the first match wins.
// Bookkeeping (seen messages, reported tasks) is updated when the decision
// is produced, not when it is executed, so a failed downstream send is
// dropped rather than retried forever.
func (e *Engine) Decide(obs Observation) Action {
	now := e.opts.Clock.Now()

	// Rule 1: answer the oldest unseen message that asks for a response.
	if a, ok := e.replyToInbox(obs, now); ok {
		return a
	}
	// Rule 2: report finished work upward, once per task.
	if a, ok := e.reportCompleted(obs); ok {
		return a
	}
	// Rule 3: escalate a blocked task to whoever owns its topic.
	if a, ok := e.askForHelp(obs); ok {
		return a
	}
	// Rule 4: a top-role agent with an empty plate generates work for the
	// least-loaded subordinate instead of idling.
	if a, ok := e.delegate(obs); ok {
		return a
	}
	// Rule 5: make progress on the head task.
	if a, ok := e.workHeadTask(obs); ok {
		return a
	}
	// Rule 6: occasionally share a finished deliverable with the company;
	// a top-role agent with nothing left queues follow-up work instead of
	// idling forever.
	if a, ok := e.shareUpdate(obs); ok {
		return a
	}
	if a, ok := e.followUp(obs); ok {
		return a
	}
	return None("nothing to do")
}

func (e *Engine) replyToInbox(obs Observation, now time.Time) (Action, bool) {
	for _, m := range obs.Inbox {
		key := MessageKey(m)
		if e.seen.Seen(key, now) {
			continue
		}
		e.seen.Add(key, now)
		if !IsTrigger(m.Content) {
			continue
		}
		return Action{
			Kind:    KindReply,
			Reason:  fmt.Sprintf("answering %s", m.SenderID),
			Channel: m.ChannelID,
			ReplyTo: m,
		}, true
	}
	return Action{}, false
}

func (e *Engine) reportCompleted(obs Observation) (Action, bool) {
	superior, ok := ReportsTo(obs.Self.Role)
	if !ok {
		return Action{}, false
	}
	boss, ok := obs.Peer(superior)
	if !ok {
		return Action{}, false
	}
	for _, t := range obs.Completed {
		if e.reported[t.ID] || !Reportable(t, e.opts.ReportPriorityMax) {
			continue
		}
		e.reported[t.ID] = true
		return Action{
			Kind:     KindReport,
			Reason:   fmt.Sprintf("reporting %q to %s", t.Title, boss.Name),
			TaskID:   t.ID,
			DirectTo: boss.ID,
			Topic:    t.Title,
		}, true
	}
	return Action{}, false
}

func (e *Engine) askForHelp(obs Observation) (Action, bool) {
	for _, t := range obs.Blocked {
		if e.asked[t.ID] {
			continue
		}
		e.asked[t.ID] = true
		a := Action{
			Kind:   KindAskHelp,
			Reason: fmt.Sprintf("blocked on %q", t.Title),
			TaskID: t.ID,
			Topic:  t.Title,
		}
		if role, ok := HelpRole(t.Title); ok && role != obs.Self.Role {
			if peer, ok := obs.Peer(role); ok {
				a.DirectTo = peer.ID
				return a, true
			}
		}
		a.Channel = comms.ChannelGeneral
		return a, true
	}
	return Action{}, false
}

// delegationTopics seeds the work a top-role agent hands each subordinate
// role when its own plate is empty.
var delegationTopics = map[Role][]task.Spec{
	RoleMarketer: {
		{Title: "Create Social Media Campaign For Product Launch", Description: "Plan and schedule a launch campaign.", Priority: 4},
		{Title: "Research Competitor Marketing Strategy", Description: "Summarize what competitors are doing this quarter.", Priority: 5},
	},
	RoleProgrammer: {
		{Title: "Fix Login Page Bug Reports", Description: "Triage and fix the open login issues.", Priority: 3},
		{Title: "Document The Public API", Description: "Write reference docs for the current endpoints.", Priority: 5},
	},
	RoleHR: {
		{Title: "Plan Team Building Event", Description: "Organize something the whole team can join.", Priority: 5},
		{Title: "Update Onboarding Handbook", Description: "Refresh the handbook for new hires.", Priority: 6},
	},
}

func (e *Engine) delegate(obs Observation) (Action, bool) {
	if !TopRole(obs.Self.Role) || len(obs.Open) > 0 {
		return Action{}, false
	}
	var target AgentRef
	found := false
	for _, p := range obs.Peers {
		if _, reports := ReportsTo(p.Role); !reports {
			continue
		}
		if !found || p.OpenTasks < target.OpenTasks {
			target = p
			found = true
		}
	}
	if !found {
		return Action{}, false
	}
	topics := delegationTopics[target.Role]
	if len(topics) == 0 {
		return Action{}, false
	}
	spec := topics[e.opts.Rand.IntN(len(topics))]
	return Action{
		Kind:     KindDelegate,
		Reason:   fmt.Sprintf("delegating %q to %s", spec.Title, target.Name),
		DirectTo: target.ID,
		Spec:     &spec,
	}, true
}

func (e *Engine) workHeadTask(obs Observation) (Action, bool) {
	if len(obs.Open) == 0 {
		return Action{}, false
	}
	head := obs.Open[0]

	switch head.Status {
	case task.StatusPending:
		if LooksComplex(head) && len(obs.HeadChildren) == 0 {
			return Action{
				Kind:     KindDecompose,
				Reason:   fmt.Sprintf("breaking down %q", head.Title),
				TaskID:   head.ID,
				Subtasks: Decompose(obs.Self.Role, head),
			}, true
		}
		return Action{
			Kind:   KindStart,
			Reason: fmt.Sprintf("starting %q", head.Title),
			TaskID: head.ID,
		}, true

	case task.StatusInProgress:
		if len(obs.HeadChildren) > 0 {
			// Leaf-first ordering means reaching a parent implies its
			// children are done; closing is still conditional in the store.
			return Action{
				Kind:   KindCloseParent,
				Reason: fmt.Sprintf("closing parent %q", head.Title),
				TaskID: head.ID,
			}, true
		}
		if DoneEnough(head, e.acted[head.ID]) {
			return Action{
				Kind:   KindComplete,
				Reason: fmt.Sprintf("finished %q", head.Title),
				TaskID: head.ID,
			}, true
		}
		if tool, args, ok := ToolFor(obs.Self.Role, head); ok {
			return Action{
				Kind:   KindUseTool,
				Reason: fmt.Sprintf("working %q with %s", head.Title, tool),
				TaskID: head.ID,
				Tool:   tool,
				Args:   args,
			}, true
		}
		return Action{
			Kind:    KindAskClarify,
			Reason:  fmt.Sprintf("unsure how to proceed on %q", head.Title),
			TaskID:  head.ID,
			Channel: RoleChannel(obs.Self.Role),
			Topic:   head.Title,
		}, true
	}
	return Action{}, false
}

func (e *Engine) shareUpdate(obs Observation) (Action, bool) {
	if e.opts.Rand.Float64() >= e.opts.ShareUpdateChance {
		return Action{}, false
	}
	for _, t := range obs.Completed {
		if e.shared[t.ID] {
			continue
		}
		e.shared[t.ID] = true
		return Action{
			Kind:    KindShareUpdate,
			Reason:  fmt.Sprintf("sharing %q", t.Title),
			TaskID:  t.ID,
			Channel: comms.ChannelGeneral,
			Topic:   t.Title,
		}, true
	}
	return Action{}, false
}

// followUpTopics is the generic root work a top-role agent creates for
// itself when its plate is empty and there is nobody to delegate to.
var followUpTopics = []task.Spec{
	{Title: "Plan Next Quarter Priorities", Description: "Decide what the company chases next.", Priority: 4},
	{Title: "Draft Investor Update", Description: "Summarize recent progress for the backers.", Priority: 5},
	{Title: "Review Team Workload Balance", Description: "Check who is overloaded and who is idle.", Priority: 6},
}

func (e *Engine) followUp(obs Observation) (Action, bool) {
	if !TopRole(obs.Self.Role) || len(obs.Open) > 0 {
		return Action{}, false
	}
	spec := followUpTopics[e.opts.Rand.IntN(len(followUpTopics))]
	return Action{
		Kind:   KindFollowUp,
		Reason: fmt.Sprintf("queueing follow-up %q", spec.Title),
		Spec:   &spec,
	}, true
}
