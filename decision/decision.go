// Package decision implements the per-agent rule cascade that turns
// observed task and message state into a single next action.
//
// One Engine exists per agent runtime. Decide evaluates an ordered rule
// list; the first matching rule wins and produces exactly one action (or
// none, meaning "idle this cycle"). The only state an Engine keeps between
// cycles is reactive bookkeeping: a bounded seen-message window, the set of
// tasks already reported upward, and per-task action counters. All of it is
// lost on restart by design.
package decision

import (
	"math/rand/v2"
	"time"

	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/task"
)

// Role identifies an agent's fixed organizational role.
type Role string

const (
	RoleCEO        Role = "ceo"
	RoleMarketer   Role = "marketer"
	RoleProgrammer Role = "programmer"
	RoleHR         Role = "hr"
)

// ReportsTo returns the role an agent reports to. The CEO reports to no
// one.
func ReportsTo(r Role) (Role, bool) {
	switch r {
	case RoleMarketer, RoleProgrammer, RoleHR:
		return RoleCEO, true
	default:
		return "", false
	}
}

// TopRole reports whether the role sits at the root of the hierarchy.
func TopRole(r Role) bool { return r == RoleCEO }

// AgentRef is the engine's view of an agent.
type AgentRef struct {
	ID        string
	Name      string
	Role      Role
	OpenTasks int // open-task count, used for delegation load balancing
}

// Observation is the state snapshot a runtime hands to Decide each cycle.
// It may be partial and slightly stale; the cascade tolerates both.
type Observation struct {
	Self  AgentRef
	Peers []AgentRef

	// Inbox holds messages from others since the runtime's inbox window.
	Inbox []*comms.Message

	// Open is the agent's open tasks, leaf-first (task.Store.OpenTasks).
	Open []*task.Task
	// HeadChildren are the direct children of Open[0], if any.
	HeadChildren []*task.Task
	// Blocked is the agent's blocked tasks, most urgent first.
	Blocked []*task.Task
	// Completed is the agent's recently completed tasks.
	Completed []*task.Task
}

// Peer returns the first peer holding the given role.
func (o *Observation) Peer(r Role) (AgentRef, bool) {
	for _, p := range o.Peers {
		if p.Role == r {
			return p, true
		}
	}
	return AgentRef{}, false
}

// Kind discriminates the action a cycle produces.
type Kind string

const (
	KindNone        Kind = "none"
	KindReply       Kind = "reply"        // answer an inbound message in its channel
	KindReport      Kind = "report"       // report a completed task to the superior
	KindAskHelp     Kind = "ask_help"     // request help on a blocked task
	KindDelegate    Kind = "delegate"     // create a task for a subordinate
	KindStart       Kind = "start"        // transition pending → in_progress
	KindDecompose   Kind = "decompose"    // start + attach sub-tasks
	KindCloseParent Kind = "close_parent" // try CloseIfChildrenComplete
	KindComplete    Kind = "complete"     // transition in_progress → completed
	KindUseTool     Kind = "use_tool"     // run a simulated tool
	KindAskClarify  Kind = "ask_clarify"  // clarifying question on a role channel
	KindShareUpdate Kind = "share_update" // share finished work in #general
	KindFollowUp    Kind = "follow_up"    // top role creates a follow-up root task
)

// Action is the single outcome of one decision cycle.
type Action struct {
	Kind   Kind
	Reason string // short human-readable log line

	TaskID   string
	Subtasks []task.Spec // KindDecompose

	Tool string         // KindUseTool
	Args map[string]any // KindUseTool

	Channel  string         // group channel name for posts
	DirectTo string         // peer agent ID for direct messages
	ReplyTo  *comms.Message // KindReply: the message being answered

	Topic string     // seed for generated message content
	Spec  *task.Spec // KindDelegate / KindFollowUp
}

// None is the idle action.
func None(reason string) Action { return Action{Kind: KindNone, Reason: reason} }

// Rand supplies the randomness the cascade needs. Tests inject a
// deterministic implementation.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Clock supplies the current time. Tests inject a fixed one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }
func (systemRand) IntN(n int) int   { return rand.IntN(n) }

// SystemRand returns a Rand backed by math/rand/v2.
func SystemRand() Rand { return systemRand{} }
