package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callmux/callmux/transport"
	"github.com/callmux/callmux/types"
)

func newDuplexFixture(t *testing.T, cfg Config) (*fixture, *mockChannel, *Duplex) {
	t.Helper()
	f := newFixture()
	ch := newMockChannel()
	f.deps.Channel = ch
	d, err := NewDuplex(cfg, f.deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return f, ch, d
}

func audioEvent(millis int) ChannelEvent {
	return ChannelEvent{
		Type: ChannelResponseAudio,
		Audio: &types.AudioChunk{
			Data:       make([]byte, 32*millis), // 16kHz mono 16-bit
			SampleRate: 16000,
			Channels:   1,
		},
	}
}

func TestDuplex_FullTurn(t *testing.T) {
	f, ch, d := newDuplexFixture(t, Config{})

	require.NoError(t, d.StartTurn(context.Background(), types.InputEvent{Text: "what's my balance?"}))
	require.Len(t, ch.sentOf(ChannelInputText), 1)

	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDone, Text: "what's my balance?"}
	ch.inbound <- audioEvent(20)
	ch.inbound <- audioEvent(20)
	ch.inbound <- ChannelEvent{Type: ChannelResponseDone}

	assert.Eventually(t, func() bool {
		return d.State() == StateIdle && f.state.TurnSequence == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, f.adapter.audioCount())
	assert.Len(t, f.adapter.eventsOf(transport.EventTurnStarted), 1)
	assert.Len(t, f.adapter.eventsOf(transport.EventTurnEnded), 1)
	assert.Equal(t, "what's my balance?", d.currentUtterance())
}

func TestDuplex_TranscriptDeltasAccumulate(t *testing.T) {
	f, ch, d := newDuplexFixture(t, Config{})

	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDelta, Text: "what's my "}
	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDelta, Text: "balance?"}
	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDone}
	ch.inbound <- ChannelEvent{Type: ChannelResponseDone}

	assert.Eventually(t, func() bool {
		return f.state.TurnSequence == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "what's my balance?", d.currentUtterance())
}

func TestDuplex_InterruptDropsStaleAudio(t *testing.T) {
	f, ch, d := newDuplexFixture(t, Config{})

	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDone, Text: "tell me everything"}
	ch.inbound <- audioEvent(20)

	require.Eventually(t, func() bool {
		return f.adapter.audioCount() == 1
	}, 2*time.Second, time.Millisecond)

	d.Interrupt("barge-in")
	assert.Equal(t, StateListening, d.State())
	require.Len(t, ch.sentOf(ChannelCancel), 1)

	// Vendor audio still in flight for the cancelled response is dropped,
	// and its response_done no longer ends a turn.
	ch.inbound <- audioEvent(20)
	ch.inbound <- ChannelEvent{Type: ChannelResponseDone}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.adapter.audioCount())
	assert.Equal(t, uint64(0), f.state.TurnSequence)

	// Idempotent: a second interrupt sends no second cancel.
	d.Interrupt("barge-in")
	assert.Len(t, ch.sentOf(ChannelCancel), 1)
}

func TestDuplex_InlineHandoff(t *testing.T) {
	f, ch, d := newDuplexFixture(t, Config{})

	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDone, Text: "I need billing"}
	ch.inbound <- ChannelEvent{
		Type: ChannelToolCall,
		Tool: "transfer_to_billing",
		Args: map[string]any{"reason": "caller asked"},
	}
	ch.inbound <- ChannelEvent{Type: ChannelResponseDone}

	assert.Eventually(t, func() bool {
		return d.State() == StateIdle && f.state.TurnSequence == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "billing", f.state.ActiveAgent)
	assert.True(t, f.state.VisitedAgents["billing"])
	require.Len(t, f.adapter.eventsOf(transport.EventHandoffApplied), 1)
}

func TestDuplex_VendorErrorSpeaksFallback(t *testing.T) {
	f, ch, d := newDuplexFixture(t, Config{FallbackPhrase: "Sorry, say that again?"})

	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDone, Text: "hello"}
	ch.inbound <- ChannelEvent{Type: ChannelError, Err: context.DeadlineExceeded}

	assert.Eventually(t, func() bool {
		return f.state.TurnSequence == 1
	}, 2*time.Second, 5*time.Millisecond)

	texts := f.adapter.eventsOf(transport.EventTranscript)
	require.NotEmpty(t, texts)
	assert.Equal(t, "Sorry, say that again?", texts[len(texts)-1].Text)
	assert.NotEqual(t, StateTerminated, d.State())
}

func TestDuplex_SpuriousCompletionIgnored(t *testing.T) {
	f, ch, d := newDuplexFixture(t, Config{FallbackPhrase: "Sorry, say that again?"})

	// Vendor completion and error with no turn in flight.
	ch.inbound <- ChannelEvent{Type: ChannelResponseDone}
	ch.inbound <- ChannelEvent{Type: ChannelError, Err: errors.New("vendor hiccup")}
	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDelta, Text: "hi"}

	// The delta lands after both; once it is visible the loop has
	// dispatched all three.
	assert.Eventually(t, func() bool {
		return d.State() == StateListening
	}, 2*time.Second, 5*time.Millisecond)

	assert.Zero(t, f.state.TurnSequence)
	assert.Empty(t, f.adapter.eventsOf(transport.EventTurnEnded))
	assert.Empty(t, f.adapter.eventsOf(transport.EventTranscript))
}

func TestDuplex_WatchdogCancelsSilentResponse(t *testing.T) {
	_, ch, d := newDuplexFixture(t, Config{WatchdogTimeout: 30 * time.Millisecond})

	ch.inbound <- ChannelEvent{Type: ChannelTranscriptDone, Text: "hello"}

	assert.Eventually(t, func() bool {
		return d.State() == StateListening
	}, 2*time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, ch.sentOf(ChannelCancel))
}

func TestDuplex_ChannelCloseTerminates(t *testing.T) {
	_, ch, d := newDuplexFixture(t, Config{})

	require.NoError(t, ch.Close())

	assert.Eventually(t, func() bool {
		return d.State() == StateTerminated
	}, 2*time.Second, 5*time.Millisecond)

	err := d.StartTurn(context.Background(), types.InputEvent{Text: "hello?"})
	assert.Equal(t, types.ErrTransportClosed, types.GetErrorCode(err))
}
