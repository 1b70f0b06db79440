package scheduler

import (
	"fmt"

	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/decision"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/task"
)

// taskSeeds is the pool of synthetic work per role. Generated tasks arrive
// as roots with mid-range priority so real urgent work still wins.
var taskSeeds = map[decision.Role][]task.Spec{
	decision.RoleCEO: {
		{Title: "Draft Q4 Vision Statement", Description: "Something disruptive, obviously.", Priority: 4},
		{Title: "Review Budget Allocation", Description: "Find money for the next big thing.", Priority: 5},
		{Title: "Plan All-Hands Announcement", Description: "Big news needs a big reveal.", Priority: 6},
	},
	decision.RoleMarketer: {
		{Title: "Create Viral TikTok Campaign", Description: "The algorithm waits for no one.", Priority: 4},
		{Title: "Research Trending Hashtags", Description: "Stay ahead of the conversation.", Priority: 6},
		{Title: "Draft Newsletter Content", Description: "Monthly update for the mailing list.", Priority: 5},
	},
	decision.RoleProgrammer: {
		{Title: "Fix Flaky Integration Tests", Description: "They fail on Tuesdays. Nobody knows why.", Priority: 4},
		{Title: "Update API Documentation", Description: "The docs drifted from reality again.", Priority: 6},
		{Title: "Implement Rate Limiting System", Description: "Before someone scripts the endpoint.", Priority: 5},
	},
	decision.RoleHR: {
		{Title: "Plan Team Building Exercise", Description: "Trust falls are back on the menu.", Priority: 6},
		{Title: "Update Employee Handbook", Description: "The snack policy needs clarifying.", Priority: 7},
		{Title: "Survey Team Satisfaction", Description: "Quarterly pulse check.", Priority: 5},
	},
}

// chatterSeeds is ambient small talk per group channel.
var chatterSeeds = map[string][]string{
	comms.ChannelGeneral: {
		"Morning everyone! Big day ahead.",
		"Reminder: demo at the end of the week.",
		"Coffee machine is fixed. You're welcome.",
	},
	comms.ChannelRandom: {
		"Anyone else think the office plant is judging us?",
		"Found a great lunch spot around the corner.",
		"Friday playlist suggestions welcome.",
	},
	comms.ChannelBrainstorming: {
		"What if we made the onboarding flow one click shorter?",
		"Wild idea: ship the changelog as a newsletter.",
		"Could we auto-tag incoming feedback by theme?",
	},
}

// statusSeeds are ambient status phrases; SetStatus sanitizes them.
var statusSeeds = []string{
	"deep in spreadsheets",
	"on a coffee break",
	"in back to back meetings",
	"heads down shipping",
	"reading industry news",
}

// memorySeeds are low-importance ambient observations.
var memorySeeds = []struct {
	title      string
	importance int
}{
	{"noticed the standup ran long again", 2},
	{"office was unusually quiet today", 1},
	{"new competitor mentioned in the news", 4},
	{"team morale seems up this week", 3},
}

// generateTask gives a random agent a fresh root task from its role pool.
func (s *Scheduler) generateTask() error {
	a, err := s.pickAgent()
	if err != nil {
		return err
	}
	pool := taskSeeds[a.Role]
	if len(pool) == 0 {
		pool = taskSeeds[decision.RoleCEO]
	}
	spec := pool[s.rand.IntN(len(pool))]
	created, err := s.stores.Tasks.Create(a.ID, spec, "")
	if err != nil {
		return fmt.Errorf("create generated task: %w", err)
	}
	s.log.Info("generated task", "agent", a.ID, "title", created.Title)
	s.signal(comms.SignalTask, a.ID, "new task "+created.Title)
	return nil
}

// generateMessage posts ambient chatter from a random agent to a random
// group channel.
func (s *Scheduler) generateMessage() error {
	a, err := s.pickAgent()
	if err != nil {
		return err
	}
	names := []string{comms.ChannelGeneral, comms.ChannelRandom, comms.ChannelBrainstorming}
	name := names[s.rand.IntN(len(names))]
	ch, err := s.stores.Comms.EnsureChannel(name)
	if err != nil {
		return fmt.Errorf("ensure channel: %w", err)
	}
	lines := chatterSeeds[name]
	if _, err := s.stores.Comms.Post(ch.ID, a.ID, lines[s.rand.IntN(len(lines))]); err != nil {
		return fmt.Errorf("post chatter: %w", err)
	}
	s.signal(comms.SignalMessage, a.ID, "chatter in "+name)
	return nil
}

// generateStatus gives a random agent an ambient status line.
func (s *Scheduler) generateStatus() error {
	a, err := s.pickAgent()
	if err != nil {
		return err
	}
	status := statusSeeds[s.rand.IntN(len(statusSeeds))]
	clean, err := s.stores.Agents.SetStatus(a.ID, status)
	if err != nil {
		return fmt.Errorf("set generated status: %w", err)
	}
	s.signal(comms.SignalStatus, a.ID, clean)
	return nil
}

// generateMemory records an ambient observation for a random agent.
func (s *Scheduler) generateMemory() error {
	a, err := s.pickAgent()
	if err != nil {
		return err
	}
	seed := memorySeeds[s.rand.IntN(len(memorySeeds))]
	if _, err := s.stores.Memories.Remember(a.ID, memory.KindObservation, seed.title, "", seed.importance, 0); err != nil {
		return fmt.Errorf("remember generated observation: %w", err)
	}
	return nil
}
