package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/decision"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/provider"
	"github.com/vibecorp/vibecorp/task"
	"github.com/vibecorp/vibecorp/tools"
)

// Interval is a randomized wait range between cycles.
type Interval struct {
	Min time.Duration
	Max time.Duration
}

// pick returns a random duration inside the interval.
func (i Interval) pick(r decision.Rand) time.Duration {
	if i.Max <= i.Min {
		return i.Min
	}
	return i.Min + time.Duration(r.IntN(int(i.Max-i.Min)))
}

// RuntimeConfig wires one runtime's collaborators and pacing.
type RuntimeConfig struct {
	Agent    *Agent
	Engine   *decision.Engine
	Tasks    task.Store
	Comms    comms.Store
	Agents   *Store
	Memories *memory.Store
	Tools    *tools.Registry
	Texter   provider.Generator
	Signals  *comms.SignalQueue
	Logger   *slog.Logger

	// Reactive paces cycles that produced an action; Idle paces empty
	// cycles. InboxWindow bounds how far back the first observation looks.
	Reactive    Interval
	Idle        Interval
	InboxWindow time.Duration

	Rand  decision.Rand
	Clock decision.Clock
}

// Runtime runs one agent's observe → decide → act loop.
type Runtime struct {
	cfg RuntimeConfig
	log *slog.Logger

	// lastInbox is the newest message timestamp already observed; the next
	// observation window starts there.
	lastInbox time.Time
}

// NewRuntime builds a runtime. Zero pacing and clock fields pick defaults.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.Rand == nil {
		cfg.Rand = decision.SystemRand()
	}
	if cfg.Clock == nil {
		cfg.Clock = decision.SystemClock()
	}
	if cfg.Reactive == (Interval{}) {
		cfg.Reactive = Interval{Min: 2 * time.Second, Max: 5 * time.Second}
	}
	if cfg.Idle == (Interval{}) {
		cfg.Idle = Interval{Min: 10 * time.Second, Max: 25 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.InboxWindow <= 0 {
		cfg.InboxWindow = time.Minute
	}
	return &Runtime{
		cfg:       cfg,
		log:       cfg.Logger.With("agent", cfg.Agent.ID),
		lastInbox: cfg.Clock.Now().Add(-cfg.InboxWindow),
	}
}

// Run loops until the context is cancelled. Each cycle is recovered
// independently: a panic or store error costs one cycle, never the agent.
func (r *Runtime) Run(ctx context.Context) {
	r.log.Info("agent running", "role", r.cfg.Agent.Role)
	for {
		acted := r.cycle(ctx)

		wait := r.cfg.Idle
		if acted {
			wait = r.cfg.Reactive
		}
		select {
		case <-ctx.Done():
			r.log.Info("agent stopping")
			return
		case <-time.After(wait.pick(r.cfg.Rand)):
		}
	}
}

// cycle runs one observe → decide → act pass and reports whether an
// action was taken.
func (r *Runtime) cycle(ctx context.Context) (acted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("cycle panicked", "panic", rec)
			acted = false
		}
	}()
	if ctx.Err() != nil {
		return false
	}

	obs, err := r.observe()
	if err != nil {
		r.log.Error("observe failed", "error", err)
		return false
	}
	action := r.cfg.Engine.Decide(*obs)
	if action.Kind == decision.KindNone {
		return false
	}
	r.log.Info("decided", "kind", action.Kind, "reason", action.Reason)
	if err := r.act(ctx, action); err != nil {
		r.log.Error("action failed", "kind", action.Kind, "error", err)
		return false
	}
	return true
}

// observe assembles the decision engine's state snapshot from the stores.
func (r *Runtime) observe() (*decision.Observation, error) {
	self := r.cfg.Agent

	inbox, err := r.cfg.Comms.Inbox(self.ID, r.lastInbox, 50)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	if n := len(inbox); n > 0 {
		r.lastInbox = inbox[n-1].CreatedAt
	}

	open, err := r.cfg.Tasks.OpenTasks(self.ID)
	if err != nil {
		return nil, fmt.Errorf("read open tasks: %w", err)
	}
	var headChildren []*task.Task
	if len(open) > 0 {
		headChildren, err = r.cfg.Tasks.ChildrenOf(open[0].ID)
		if err != nil {
			return nil, fmt.Errorf("read head children: %w", err)
		}
	}

	blocked := task.StatusBlocked
	blockedTasks, err := r.cfg.Tasks.List(task.Filter{AgentID: self.ID, Status: &blocked})
	if err != nil {
		return nil, fmt.Errorf("read blocked tasks: %w", err)
	}
	completed := task.StatusCompleted
	completedTasks, err := r.cfg.Tasks.List(task.Filter{AgentID: self.ID, Status: &completed, Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("read completed tasks: %w", err)
	}

	peers, err := r.peerRefs()
	if err != nil {
		return nil, fmt.Errorf("read peers: %w", err)
	}

	selfRef := self.Ref()
	selfRef.OpenTasks = len(open)
	return &decision.Observation{
		Self:         selfRef,
		Peers:        peers,
		Inbox:        inbox,
		Open:         open,
		HeadChildren: headChildren,
		Blocked:      blockedTasks,
		Completed:    completedTasks,
	}, nil
}

func (r *Runtime) peerRefs() ([]decision.AgentRef, error) {
	all, err := r.cfg.Agents.List()
	if err != nil {
		return nil, err
	}
	refs := make([]decision.AgentRef, 0, len(all)-1)
	for _, a := range all {
		if a.ID == r.cfg.Agent.ID {
			continue
		}
		ref := a.Ref()
		if open, err := r.cfg.Tasks.OpenTasks(a.ID); err == nil {
			ref.OpenTasks = len(open)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// act executes one decided action against the stores and tools.
func (r *Runtime) act(ctx context.Context, a decision.Action) error {
	switch a.Kind {
	case decision.KindReply:
		return r.reply(ctx, a)
	case decision.KindReport:
		return r.report(ctx, a)
	case decision.KindAskHelp:
		return r.askHelp(ctx, a)
	case decision.KindDelegate:
		return r.delegate(ctx, a)
	case decision.KindStart:
		return r.startTask(a)
	case decision.KindDecompose:
		return r.decompose(a)
	case decision.KindCloseParent:
		return r.closeParent(a)
	case decision.KindComplete:
		return r.complete(a)
	case decision.KindUseTool:
		return r.useTool(ctx, a)
	case decision.KindAskClarify:
		return r.askClarify(ctx, a)
	case decision.KindShareUpdate:
		return r.shareUpdate(ctx, a)
	case decision.KindFollowUp:
		return r.followUp(a)
	}
	return fmt.Errorf("unknown action kind %q", a.Kind)
}

func (r *Runtime) reply(ctx context.Context, a decision.Action) error {
	text, err := r.compose(ctx, fmt.Sprintf("Reply briefly to this message from a colleague: %q", a.ReplyTo.Content))
	if err != nil {
		return err
	}
	if _, err := r.cfg.Comms.Post(a.ReplyTo.ChannelID, r.cfg.Agent.ID, text); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	r.signal(comms.SignalMessage, "replied in channel")
	r.remember(memory.KindConversation, "replied to "+a.ReplyTo.SenderID, a.ReplyTo.Content, 3)
	r.setStatus("replying to " + a.ReplyTo.SenderID)
	return nil
}

func (r *Runtime) report(ctx context.Context, a decision.Action) error {
	ch, err := r.cfg.Comms.DirectChannel(r.cfg.Agent.ID, a.DirectTo)
	if err != nil {
		return fmt.Errorf("open direct channel: %w", err)
	}
	text, err := r.compose(ctx, fmt.Sprintf("Report to your manager that you finished: %s", a.Topic))
	if err != nil {
		return err
	}
	if _, err := r.cfg.Comms.Post(ch.ID, r.cfg.Agent.ID, text); err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	r.signal(comms.SignalMessage, "reported completed work")
	r.remember(memory.KindWorkItem, "reported: "+a.Topic, "", 5)
	r.setStatus("reporting " + a.Topic)
	return nil
}

func (r *Runtime) askHelp(ctx context.Context, a decision.Action) error {
	channelID := ""
	if a.DirectTo != "" {
		ch, err := r.cfg.Comms.DirectChannel(r.cfg.Agent.ID, a.DirectTo)
		if err != nil {
			return fmt.Errorf("open direct channel: %w", err)
		}
		channelID = ch.ID
	} else {
		ch, err := r.cfg.Comms.EnsureChannel(a.Channel)
		if err != nil {
			return fmt.Errorf("ensure channel: %w", err)
		}
		channelID = ch.ID
	}
	text, err := r.compose(ctx, fmt.Sprintf("Ask for help: you are blocked on %q and need someone to unblock you.", a.Topic))
	if err != nil {
		return err
	}
	if _, err := r.cfg.Comms.Post(channelID, r.cfg.Agent.ID, text); err != nil {
		return fmt.Errorf("post help request: %w", err)
	}
	r.signal(comms.SignalMessage, "asked for help")
	r.setStatus("blocked on " + a.Topic)
	return nil
}

func (r *Runtime) delegate(ctx context.Context, a decision.Action) error {
	// Compose first: if no message can go out this cycle, the task is not
	// assigned either, and the rule simply fires again later.
	text, err := r.compose(ctx, fmt.Sprintf("Tell your report you assigned them a new task: %s", a.Spec.Title))
	if err != nil {
		return err
	}
	created, err := r.cfg.Tasks.Create(a.DirectTo, *a.Spec, "")
	if err != nil {
		return fmt.Errorf("create delegated task: %w", err)
	}
	ch, err := r.cfg.Comms.DirectChannel(r.cfg.Agent.ID, a.DirectTo)
	if err != nil {
		return fmt.Errorf("open direct channel: %w", err)
	}
	if _, err := r.cfg.Comms.Post(ch.ID, r.cfg.Agent.ID, text); err != nil {
		return fmt.Errorf("post assignment: %w", err)
	}
	r.signal(comms.SignalTask, "delegated "+created.Title)
	r.setStatus("delegating work")
	return nil
}

func (r *Runtime) startTask(a decision.Action) error {
	if err := r.cfg.Tasks.Transition(a.TaskID, task.StatusInProgress); err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	r.signal(comms.SignalTask, "started task")
	if t, err := r.cfg.Tasks.Get(a.TaskID); err == nil {
		r.setStatus("working on " + t.Title)
	}
	return nil
}

func (r *Runtime) decompose(a decision.Action) error {
	if err := r.cfg.Tasks.Transition(a.TaskID, task.StatusInProgress); err != nil {
		return fmt.Errorf("start parent: %w", err)
	}
	if _, err := r.cfg.Tasks.AttachChildren(a.TaskID, a.Subtasks); err != nil {
		return fmt.Errorf("attach subtasks: %w", err)
	}
	r.signal(comms.SignalTask, fmt.Sprintf("split task into %d steps", len(a.Subtasks)))
	r.setStatus("planning subtasks")
	return nil
}

func (r *Runtime) closeParent(a decision.Action) error {
	closed, err := r.cfg.Tasks.CloseIfChildrenComplete(a.TaskID)
	if err != nil {
		return fmt.Errorf("close parent: %w", err)
	}
	if closed {
		r.cfg.Engine.Forget(a.TaskID)
		r.signal(comms.SignalTask, "closed parent task")
	}
	return nil
}

func (r *Runtime) complete(a decision.Action) error {
	if err := r.cfg.Tasks.Transition(a.TaskID, task.StatusCompleted); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	r.cfg.Engine.Forget(a.TaskID)
	r.signal(comms.SignalTask, "completed task")
	if t, err := r.cfg.Tasks.Get(a.TaskID); err == nil {
		r.remember(memory.KindWorkItem, "finished: "+t.Title, t.Description, 6)
		r.setStatus("finished " + t.Title)
	}
	return nil
}

func (r *Runtime) useTool(ctx context.Context, a decision.Action) error {
	tool, ok := r.cfg.Tools.Get(a.Tool)
	if !ok {
		return fmt.Errorf("tool %q not registered", a.Tool)
	}
	result, err := tool.Execute(ctx, r.cfg.Agent.ID, a.Args)
	if err != nil {
		// The task is left untouched so the next cycle can retry it.
		r.signal(comms.SignalError, fmt.Sprintf("%s failed: %v", a.Tool, err))
		return fmt.Errorf("execute %s: %w", a.Tool, err)
	}
	r.cfg.Engine.MarkActed(a.TaskID)
	r.remember(memory.KindObservation, "used "+a.Tool, result, 4)
	r.setStatus("using " + a.Tool)
	return nil
}

func (r *Runtime) askClarify(ctx context.Context, a decision.Action) error {
	ch, err := r.cfg.Comms.EnsureChannel(a.Channel)
	if err != nil {
		return fmt.Errorf("ensure channel: %w", err)
	}
	text, err := r.compose(ctx, fmt.Sprintf("Ask the team a clarifying question about your task: %s", a.Topic))
	if err != nil {
		return err
	}
	if _, err := r.cfg.Comms.Post(ch.ID, r.cfg.Agent.ID, text); err != nil {
		return fmt.Errorf("post question: %w", err)
	}
	// A clarifying exchange counts as progress on the task.
	r.cfg.Engine.MarkActed(a.TaskID)
	r.signal(comms.SignalMessage, "asked for clarification")
	r.setStatus("clarifying " + a.Topic)
	return nil
}

func (r *Runtime) shareUpdate(ctx context.Context, a decision.Action) error {
	ch, err := r.cfg.Comms.EnsureChannel(a.Channel)
	if err != nil {
		return fmt.Errorf("ensure channel: %w", err)
	}
	text, err := r.compose(ctx, fmt.Sprintf("Share a short progress update with the company: you finished %q.", a.Topic))
	if err != nil {
		return err
	}
	if _, err := r.cfg.Comms.Post(ch.ID, r.cfg.Agent.ID, text); err != nil {
		return fmt.Errorf("post update: %w", err)
	}
	r.signal(comms.SignalMessage, "shared an update")
	return nil
}

func (r *Runtime) followUp(a decision.Action) error {
	created, err := r.cfg.Tasks.Create(r.cfg.Agent.ID, *a.Spec, "")
	if err != nil {
		return fmt.Errorf("create follow-up: %w", err)
	}
	r.signal(comms.SignalTask, "created follow-up "+created.Title)
	return nil
}

// compose turns a situation prompt into message text. A generation failure
// means no message this cycle: the action errors out and the engine's
// emit-time bookkeeping drops it rather than retrying forever.
func (r *Runtime) compose(ctx context.Context, situation string) (string, error) {
	text, err := r.cfg.Texter.Generate(ctx, r.cfg.Agent.Persona, situation)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("generate text: empty response")
	}
	return text, nil
}

func (r *Runtime) signal(kind comms.SignalKind, detail string) {
	if r.cfg.Signals == nil {
		return
	}
	r.cfg.Signals.Publish(comms.Signal{
		Kind:    kind,
		AgentID: r.cfg.Agent.ID,
		Detail:  detail,
		At:      r.cfg.Clock.Now(),
	})
}

func (r *Runtime) remember(kind memory.Kind, title, content string, importance int) {
	if r.cfg.Memories == nil {
		return
	}
	if _, err := r.cfg.Memories.Remember(r.cfg.Agent.ID, kind, title, content, importance, 0); err != nil {
		r.log.Warn("remember failed", "error", err)
	}
}

func (r *Runtime) setStatus(status string) {
	if _, err := r.cfg.Agents.SetStatus(r.cfg.Agent.ID, status); err != nil {
		r.log.Warn("status update failed", "error", err)
	}
	r.signal(comms.SignalStatus, status)
}
