package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callmux/callmux/handoff"
)

func TestState_SetActiveAgent_Invariant(t *testing.T) {
	s := NewState("call-1", "triage")
	assert.Equal(t, "triage", s.ActiveAgent)
	assert.True(t, s.VisitedAgents[s.ActiveAgent], "active agent must be a visited agent")

	s.SetActiveAgent("billing")
	assert.Equal(t, "billing", s.ActiveAgent)
	assert.True(t, s.VisitedAgents["billing"])
	assert.True(t, s.VisitedAgents["triage"], "previous owners stay in the visited set")
	assert.True(t, s.HasVisited("triage"))
	assert.False(t, s.HasVisited("fraud"))
}

func TestState_Variables(t *testing.T) {
	s := NewState("call-1", "triage")
	s.SetVariable("correlation_id", "corr-9")

	v, ok := s.Variable("correlation_id")
	require.True(t, ok)
	assert.Equal(t, "corr-9", v)

	_, ok = s.Variable("missing")
	assert.False(t, ok)

	s.MergeVariables(map[string]any{"correlation_id": "corr-10", "tenant_id": "acme"})
	v, _ = s.Variable("correlation_id")
	assert.Equal(t, "corr-10", v)
	v, _ = s.Variable("tenant_id")
	assert.Equal(t, "acme", v)
}

func TestState_Clone_Isolated(t *testing.T) {
	s := NewState("call-1", "triage")
	s.SetVariable("k", "v")
	s.PendingHandoff = &handoff.Record{ID: "h-1", TargetAgent: "billing"}
	s.TurnSequence = 3

	clone := s.Clone()
	require.Equal(t, s.ActiveAgent, clone.ActiveAgent)
	require.Equal(t, s.TurnSequence, clone.TurnSequence)
	require.NotNil(t, clone.PendingHandoff)

	// Mutating the clone must not affect the original.
	clone.SetActiveAgent("fraud")
	clone.SetVariable("k", "changed")
	clone.PendingHandoff.TargetAgent = "fraud"

	assert.Equal(t, "triage", s.ActiveAgent)
	assert.False(t, s.VisitedAgents["fraud"])
	v, _ := s.Variable("k")
	assert.Equal(t, "v", v)
	assert.Equal(t, "billing", s.PendingHandoff.TargetAgent)
}
