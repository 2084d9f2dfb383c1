package transport

import (
	"context"
	"time"

	"github.com/callmux/callmux/types"
)

// EventType identifies a lifecycle event sent to the caller's media endpoint.
type EventType string

const (
	EventTurnStarted    EventType = "turn_started"
	EventTurnEnded      EventType = "turn_ended"
	EventTranscript     EventType = "transcript"
	EventInterrupted    EventType = "interrupted"
	EventHandoffApplied EventType = "handoff_applied"
	EventError          EventType = "error"
)

// Event is an out-of-band lifecycle notification accompanying the audio
// stream. Audio and events share ordering on a single adapter.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent,omitempty"`
	Text      string         `json:"text,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// InboundType identifies an event received from the caller's media endpoint.
type InboundType string

const (
	InboundInput     InboundType = "input"
	InboundInterrupt InboundType = "interrupt"
	InboundHangup    InboundType = "hangup"
)

// Inbound is one event received from the media endpoint.
type Inbound struct {
	Type   InboundType       `json:"type"`
	Input  *types.InputEvent `json:"input,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

// Adapter is the contract between the orchestration engine and a media
// transport. Implementations must tolerate concurrent DeliverAudio and
// DeliverEvent calls. After Close, delivery returns a TRANSPORT_CLOSED error
// and Done is closed; the engine treats that as call termination.
type Adapter interface {
	// DeliverAudio sends one synthesized audio chunk to the caller.
	DeliverAudio(ctx context.Context, chunk types.AudioChunk) error

	// DeliverEvent sends one lifecycle event to the caller.
	DeliverEvent(ctx context.Context, ev Event) error

	// Done is closed when the transport has terminated, from either side.
	Done() <-chan struct{}

	// Close terminates the transport. Idempotent.
	Close() error
}
