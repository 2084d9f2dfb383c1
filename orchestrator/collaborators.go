package orchestrator

import (
	"context"
	"time"

	"github.com/callmux/callmux/pool"
	"github.com/callmux/callmux/types"
)

// ToolExecutor is handed to the reasoning collaborator so that every tool
// invocation routes through the engine, where handoff triggers are detected.
type ToolExecutor interface {
	ExecuteToolCall(ctx context.Context, name string, args map[string]any) (types.ToolResult, error)
}

// ReasonInput is the conversation context supplied to the reasoning layer.
type ReasonInput struct {
	SessionID        string
	Agent            string
	AgentDescription string
	Utterance        string
	SharedVariables  map[string]any
	VisitedAgents    []string
	TurnSequence     uint64
}

// ReasonOutput is the reasoning layer's final spoken reply for a turn. Tool
// invocations happen as callbacks through the ToolExecutor before Respond
// returns; a handoff requested mid-reasoning may leave Text empty.
type ReasonOutput struct {
	Text string
}

// Reasoner is the external reasoning collaborator (LLM plus tooling).
type Reasoner interface {
	Respond(ctx context.Context, in ReasonInput, tools ToolExecutor) (*ReasonOutput, error)
}

// Recognizer transcribes a buffered utterance using a pooled vendor handle.
type Recognizer interface {
	Recognize(ctx context.Context, client pool.Client, frames []types.AudioChunk) (*types.TranscriptEvent, error)
}

// Synthesizer renders text to speech using a pooled vendor handle, streaming
// chunks through emit. It must stop promptly when ctx is cancelled or emit
// returns an error.
type Synthesizer interface {
	Synthesize(ctx context.Context, client pool.Client, text string, emit func(types.AudioChunk) error) error
}

// Tools is the business-tool collaborator. Dispatch results for handoff
// triggers feed context transfer; everything else passes through unchanged.
type Tools interface {
	Dispatch(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// ChannelEventType identifies one event on a bidirectional realtime channel.
type ChannelEventType string

const (
	// Inbound from the vendor.
	ChannelTranscriptDelta ChannelEventType = "transcript_delta"
	ChannelTranscriptDone  ChannelEventType = "transcript_done"
	ChannelResponseAudio   ChannelEventType = "response_audio"
	ChannelToolCall        ChannelEventType = "tool_call"
	ChannelResponseDone    ChannelEventType = "response_done"
	ChannelError           ChannelEventType = "error"

	// Outbound to the vendor.
	ChannelInputAudio ChannelEventType = "input_audio"
	ChannelInputText  ChannelEventType = "input_text"
	ChannelCancel     ChannelEventType = "cancel"
)

// ChannelEvent is one multiplexed event on a realtime channel.
type ChannelEvent struct {
	Type  ChannelEventType
	Text  string
	Audio *types.AudioChunk
	Tool  string
	Args  map[string]any
	Err   error
}

// RealtimeChannel is a bidirectional vendor stream that multiplexes
// recognition deltas and response events, used by the duplex orchestrator.
// Receive returns types.ErrTransportClosed-coded errors once the channel is
// gone.
type RealtimeChannel interface {
	Send(ctx context.Context, ev ChannelEvent) error
	Receive(ctx context.Context) (*ChannelEvent, error)
	Close() error
}

// Recorder receives the engine's observability events. Satisfied by the
// metrics collector; may be nil.
type Recorder interface {
	RecordTurn(agent, mode, status string, duration time.Duration)
	RecordFirstAudio(mode string, lag time.Duration)
	RecordInterruption(reason string, cutoff time.Duration)
	RecordHandoff(source, target, status string)
	RecordSessionStart()
	RecordSessionEnd()
	RecordPersistenceFailure(backend string)
}
