package orchestrator

import (
	"fmt"
	"sync"

	"github.com/callmux/callmux/types"
)

// CallState is the per-call lifecycle state.
type CallState string

const (
	// StateIdle means no turn is in flight; the call awaits user input.
	StateIdle CallState = "IDLE"

	// StateListening means inbound audio is being buffered for an utterance.
	StateListening CallState = "LISTENING"

	// StateThinking means the reasoning layer is producing a reply.
	StateThinking CallState = "THINKING"

	// StateResponding means synthesized audio is streaming to the transport.
	StateResponding CallState = "RESPONDING"

	// StateHandoffPending means a deferred handoff is waiting for the current
	// turn's audio to finish.
	StateHandoffPending CallState = "HANDOFF_PENDING"

	// StateTerminated means the transport closed; terminal.
	StateTerminated CallState = "TERMINATED"
)

// transitions lists the legal state changes. TERMINATED is reachable from
// every state and therefore handled separately.
var transitions = map[CallState]map[CallState]bool{
	StateIdle:      {StateListening: true},
	StateListening: {StateThinking: true, StateIdle: true},
	StateThinking: {
		StateResponding:     true,
		StateListening:      true, // interrupt
		StateHandoffPending: true,
		StateIdle:           true, // turn ended without audio
	},
	StateResponding: {
		StateIdle:           true,
		StateListening:      true, // interrupt
		StateHandoffPending: true,
	},
	StateHandoffPending: {
		StateResponding: true,
		StateListening:  true,
		StateIdle:       true,
	},
	StateTerminated: {},
}

// stateMachine guards the call state. It is the only piece of per-call state
// touched from outside the owning execution unit (interrupt, transport close),
// so it carries its own lock.
type stateMachine struct {
	mu    sync.Mutex
	state CallState
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateIdle}
}

// current returns the current state.
func (m *stateMachine) current() CallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to the target state, failing on an illegal edge.
func (m *stateMachine) transition(to CallState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateTerminated {
		return types.NewError(types.ErrTransportClosed, "call terminated")
	}
	if to == StateTerminated {
		m.state = StateTerminated
		return nil
	}
	if !transitions[m.state][to] {
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("illegal transition %s -> %s", m.state, to))
	}
	m.state = to
	return nil
}

// transitionIf moves to the target state only when currently in from;
// reports whether the move happened.
func (m *stateMachine) transitionIf(from, to CallState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from || !transitions[from][to] {
		return false
	}
	m.state = to
	return true
}

// terminate forces the terminal state from anywhere.
func (m *stateMachine) terminate() {
	m.mu.Lock()
	m.state = StateTerminated
	m.mu.Unlock()
}
