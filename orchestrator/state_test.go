package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callmux/callmux/types"
)

func TestStateMachine_TurnCycle(t *testing.T) {
	m := newStateMachine()
	assert.Equal(t, StateIdle, m.current())

	require.NoError(t, m.transition(StateListening))
	require.NoError(t, m.transition(StateThinking))
	require.NoError(t, m.transition(StateResponding))
	require.NoError(t, m.transition(StateIdle))
}

func TestStateMachine_InterruptShortCircuit(t *testing.T) {
	m := newStateMachine()
	require.NoError(t, m.transition(StateListening))
	require.NoError(t, m.transition(StateThinking))
	require.NoError(t, m.transition(StateResponding))

	require.NoError(t, m.transition(StateListening))
	assert.Equal(t, StateListening, m.current())
}

func TestStateMachine_IllegalEdge(t *testing.T) {
	m := newStateMachine()
	err := m.transition(StateResponding)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
	assert.Equal(t, StateIdle, m.current())
}

func TestStateMachine_TerminatedFromAnywhere(t *testing.T) {
	for _, from := range []CallState{StateIdle, StateListening, StateThinking, StateResponding, StateHandoffPending} {
		m := &stateMachine{state: from}
		require.NoError(t, m.transition(StateTerminated))
		assert.Equal(t, StateTerminated, m.current())

		err := m.transition(StateListening)
		require.Error(t, err)
		assert.Equal(t, types.ErrTransportClosed, types.GetErrorCode(err))
	}
}

func TestStateMachine_TransitionIf(t *testing.T) {
	m := newStateMachine()
	assert.True(t, m.transitionIf(StateIdle, StateListening))
	assert.False(t, m.transitionIf(StateIdle, StateListening))
	assert.Equal(t, StateListening, m.current())
}

func TestStateMachine_HandoffPendingSubState(t *testing.T) {
	m := newStateMachine()
	require.NoError(t, m.transition(StateListening))
	require.NoError(t, m.transition(StateThinking))
	require.NoError(t, m.transition(StateHandoffPending))
	require.NoError(t, m.transition(StateIdle))
}
