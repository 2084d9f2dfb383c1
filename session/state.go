package session

import (
	"time"

	"github.com/callmux/callmux/handoff"
)

// State is the mutable per-call record. It is mutated only by the owning
// call's execution unit; the orchestrator enforces the single-writer
// discipline, so State itself carries no locking.
type State struct {
	// SessionID is opaque and immutable for the call's lifetime.
	SessionID string `json:"session_id"`

	// ActiveAgent is the identity of the agent currently owning the
	// conversation. Once assigned it is always a member of VisitedAgents.
	ActiveAgent string `json:"active_agent"`

	// VisitedAgents is the set of agents that have held ownership this call.
	VisitedAgents map[string]bool `json:"visited_agents"`

	// SharedVariables carries opaque values across turns and handoffs.
	SharedVariables map[string]any `json:"shared_variables"`

	// PendingHandoff is set when a handoff was requested but must wait for
	// the current turn's audio to finish or be interrupted.
	PendingHandoff *handoff.Record `json:"pending_handoff,omitempty"`

	// TurnSequence counts completed user turns, monotonically.
	TurnSequence uint64 `json:"turn_sequence"`

	// UpdatedAt is refreshed on every save.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a fresh state for a call owned by the given agent.
func NewState(sessionID, activeAgent string) *State {
	s := &State{
		SessionID:       sessionID,
		VisitedAgents:   make(map[string]bool),
		SharedVariables: make(map[string]any),
	}
	if activeAgent != "" {
		s.SetActiveAgent(activeAgent)
	}
	return s
}

// SetActiveAgent transfers ownership to the given agent, extending
// VisitedAgents so the membership invariant holds.
func (s *State) SetActiveAgent(agent string) {
	if s.VisitedAgents == nil {
		s.VisitedAgents = make(map[string]bool)
	}
	s.VisitedAgents[agent] = true
	s.ActiveAgent = agent
}

// HasVisited reports whether the agent has held ownership this call.
func (s *State) HasVisited(agent string) bool {
	return s.VisitedAgents[agent]
}

// SetVariable stores a shared variable carried across turns and handoffs.
func (s *State) SetVariable(key string, value any) {
	if s.SharedVariables == nil {
		s.SharedVariables = make(map[string]any)
	}
	s.SharedVariables[key] = value
}

// Variable returns a shared variable by key.
func (s *State) Variable(key string) (any, bool) {
	v, ok := s.SharedVariables[key]
	return v, ok
}

// MergeVariables merges the given mapping into the shared variables,
// overwriting existing keys.
func (s *State) MergeVariables(vars map[string]any) {
	if len(vars) == 0 {
		return
	}
	if s.SharedVariables == nil {
		s.SharedVariables = make(map[string]any, len(vars))
	}
	for k, v := range vars {
		s.SharedVariables[k] = v
	}
}

// Clone returns a deep-enough copy for store boundaries: maps are copied,
// shared variable values (opaque to the engine) are copied by reference.
func (s *State) Clone() *State {
	out := *s
	out.VisitedAgents = make(map[string]bool, len(s.VisitedAgents))
	for k, v := range s.VisitedAgents {
		out.VisitedAgents[k] = v
	}
	out.SharedVariables = make(map[string]any, len(s.SharedVariables))
	for k, v := range s.SharedVariables {
		out.SharedVariables[k] = v
	}
	if s.PendingHandoff != nil {
		rec := *s.PendingHandoff
		out.PendingHandoff = &rec
	}
	return &out
}
