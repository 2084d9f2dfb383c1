package agent

import (
	"fmt"
	"sync/atomic"

	"github.com/callmux/callmux/types"
)

// Definition describes one agent available for conversation ownership.
type Definition struct {
	// Name is the agent identity, unique within a registry.
	Name string `json:"name" yaml:"name"`

	// Description is surfaced to the reasoning layer.
	Description string `json:"description" yaml:"description"`

	// Trigger is the tool identifier that routes a handoff to this agent.
	// At most one per agent; empty means the agent is never a handoff target.
	Trigger string `json:"trigger,omitempty" yaml:"trigger,omitempty"`

	// Greeting is spoken when the agent takes ownership for the first time
	// in a call.
	Greeting string `json:"greeting,omitempty" yaml:"greeting,omitempty"`

	// ReturnGreeting is spoken when ownership returns to an agent that has
	// already held the call. Falls back to Greeting when empty.
	ReturnGreeting string `json:"return_greeting,omitempty" yaml:"return_greeting,omitempty"`

	// AllowInterrupt controls whether barge-in is honored while this agent
	// is speaking.
	AllowInterrupt bool `json:"allow_interrupt" yaml:"allow_interrupt"`
}

// EntryGreeting returns the greeting to speak when the agent takes ownership,
// selecting first-visit vs return behavior.
func (d Definition) EntryGreeting(returning bool) string {
	if returning && d.ReturnGreeting != "" {
		return d.ReturnGreeting
	}
	return d.Greeting
}

// Snapshot is an immutable view of the registered agent definitions.
type Snapshot struct {
	defs  map[string]Definition
	order []string
}

// Get returns the definition for the given agent name.
func (s *Snapshot) Get(name string) (Definition, bool) {
	d, ok := s.defs[name]
	return d, ok
}

// List returns all definitions in registration order.
func (s *Snapshot) List() []Definition {
	out := make([]Definition, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.defs[name])
	}
	return out
}

// Len returns the number of registered agents.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Registry holds the current snapshot of agent definitions.
type Registry struct {
	snap atomic.Pointer[Snapshot]
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	snap, err := buildSnapshot(defs)
	if err != nil {
		return nil, err
	}
	r := &Registry{}
	r.snap.Store(snap)
	return r, nil
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Reload replaces the registered definitions atomically. In-flight calls keep
// the snapshot they already hold.
func (r *Registry) Reload(defs []Definition) error {
	snap, err := buildSnapshot(defs)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}

func buildSnapshot(defs []Definition) (*Snapshot, error) {
	snap := &Snapshot{
		defs:  make(map[string]Definition, len(defs)),
		order: make([]string, 0, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, types.NewError(types.ErrInvalidConfig, "agent definition without a name")
		}
		if _, exists := snap.defs[d.Name]; exists {
			return nil, types.NewError(types.ErrInvalidConfig,
				fmt.Sprintf("duplicate agent name: %s", d.Name))
		}
		snap.defs[d.Name] = d
		snap.order = append(snap.order, d.Name)
	}
	return snap, nil
}
