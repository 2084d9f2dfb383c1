package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/callmux/callmux/transport"
	"github.com/callmux/callmux/types"
)

// Duplex orchestrates a call over a bidirectional realtime channel: a single
// event loop multiplexes recognition deltas and response events, with handoff
// detection inline in event dispatch. A watchdog cancels a response when the
// vendor goes silent mid-turn.
type Duplex struct {
	*core

	channel RealtimeChannel

	loopCtx    context.Context
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	// transcript accumulation and the current turn's epoch, owned by the
	// event loop.
	partial   strings.Builder
	turnEpoch uint64

	watchdogMu sync.Mutex
	watchdog   *time.Timer
}

var _ Orchestrator = (*Duplex)(nil)

// NewDuplex builds a duplex orchestrator for one call and starts its event
// loop.
func NewDuplex(cfg Config, deps Deps) (*Duplex, error) {
	if deps.Channel == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "duplex orchestrator requires a realtime channel")
	}
	c, err := newCore(ModeDuplex, cfg, deps)
	if err != nil {
		return nil, err
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	d := &Duplex{
		core:       c,
		channel:    deps.Channel,
		loopCtx:    loopCtx,
		loopCancel: loopCancel,
		loopDone:   make(chan struct{}),
	}
	go d.loop()
	return d, nil
}

// StartTurn forwards an inbound event onto the realtime channel. Turn
// boundaries are driven by the vendor's transcript and response events.
func (d *Duplex) StartTurn(ctx context.Context, ev types.InputEvent) error {
	if ev.SessionID != "" && ev.SessionID != d.state.SessionID {
		return types.NewError(types.ErrInvalidInput, "input event for a different session").
			WithSession(d.state.SessionID)
	}

	switch st := d.sm.current(); st {
	case StateTerminated:
		return types.NewError(types.ErrTransportClosed, "call terminated")
	case StateThinking, StateResponding, StateHandoffPending:
		if !d.bargeInAllowed() {
			return types.NewError(types.ErrTurnInFlight, "turn in flight and barge-in disabled").
				WithRetryable(true)
		}
		d.Interrupt("barge-in")
	}
	d.sm.transitionIf(StateIdle, StateListening)

	switch {
	case ev.Text != "":
		return d.channel.Send(ctx, ChannelEvent{Type: ChannelInputText, Text: ev.Text})
	case ev.Audio != nil:
		return d.channel.Send(ctx, ChannelEvent{Type: ChannelInputAudio, Audio: ev.Audio})
	default:
		return types.NewError(types.ErrInvalidInput, "input event carries neither audio nor text")
	}
}

// Interrupt cancels the in-flight response and tells the vendor to stop
// generating.
func (d *Duplex) Interrupt(reason string) {
	if !d.interrupt(reason) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.channel.Send(ctx, ChannelEvent{Type: ChannelCancel}); err != nil {
		d.logger.Debug("cancel signal failed", zap.Error(err))
	}
}

// loop is the single event-driven dispatcher for the call.
func (d *Duplex) loop() {
	defer close(d.loopDone)

	for {
		ev, err := d.channel.Receive(d.loopCtx)
		if err != nil {
			if d.loopCtx.Err() == nil {
				d.logger.Info("realtime channel closed", zap.Error(err))
				d.terminate("realtime channel closed")
			}
			return
		}
		d.resetWatchdog()
		d.dispatch(ev)
	}
}

func (d *Duplex) dispatch(ev *ChannelEvent) {
	switch ev.Type {
	case ChannelTranscriptDelta:
		d.sm.transitionIf(StateIdle, StateListening)
		d.partial.WriteString(ev.Text)

	case ChannelTranscriptDone:
		utterance := ev.Text
		if utterance == "" {
			utterance = d.partial.String()
		}
		d.partial.Reset()
		if utterance == "" {
			return
		}
		d.sm.transitionIf(StateIdle, StateListening)
		if !d.sm.transitionIf(StateListening, StateThinking) {
			return
		}
		_, d.turnEpoch = d.beginTurn(d.loopCtx, utterance)
		d.deliverEvent(d.loopCtx, transport.Event{Type: transport.EventTurnStarted, Agent: d.state.ActiveAgent})
		d.deliverEvent(d.loopCtx, transport.Event{Type: transport.EventTranscript, Text: utterance})
		d.armWatchdog()

	case ChannelResponseAudio:
		if ev.Audio == nil {
			return
		}
		d.sm.transitionIf(StateThinking, StateResponding)
		d.synthesizedNanos.Add(int64(ev.Audio.Duration()))
		if err := d.emitAudio(d.loopCtx, d.turnEpoch, *ev.Audio); err != nil &&
			!errors.Is(err, errTurnInterrupted) {
			d.logger.Warn("audio delivery failed", zap.Error(err))
		}

	case ChannelToolCall:
		if _, err := d.ExecuteToolCall(d.loopCtx, ev.Tool, ev.Args); err != nil {
			d.logger.Warn("tool call failed", zap.String("tool", ev.Tool), zap.Error(err))
		}

	case ChannelResponseDone:
		d.disarmWatchdog()
		if d.turnEpoch != d.epoch.Load() {
			return // response belonged to an interrupted turn
		}
		if st := d.sm.current(); st != StateThinking && st != StateResponding && st != StateHandoffPending {
			return // no turn in flight; spurious vendor completion
		}
		_ = d.EndTurn(d.loopCtx)

	case ChannelError:
		d.disarmWatchdog()
		d.logger.Error("vendor response failed", zap.Error(ev.Err))
		st := d.sm.current()
		if st != StateThinking && st != StateResponding && st != StateHandoffPending {
			return // no turn in flight; nothing to recover
		}
		d.setTurnStatus("reasoning_failure")
		d.deliverEvent(d.loopCtx, transport.Event{
			Type:  transport.EventTranscript,
			Agent: d.state.ActiveAgent,
			Text:  d.cfg.FallbackPhrase,
		})
		if d.turnEpoch == d.epoch.Load() {
			_ = d.EndTurn(d.loopCtx)
		}
	}
}

// armWatchdog starts the silence timer for the in-flight response.
func (d *Duplex) armWatchdog() {
	d.watchdogMu.Lock()
	defer d.watchdogMu.Unlock()
	if d.watchdog != nil {
		d.watchdog.Stop()
	}
	d.watchdog = time.AfterFunc(d.cfg.WatchdogTimeout, func() {
		if st := d.sm.current(); st == StateThinking || st == StateResponding || st == StateHandoffPending {
			d.logger.Warn("response watchdog fired", zap.Duration("timeout", d.cfg.WatchdogTimeout))
			d.Interrupt("watchdog")
		}
	})
}

func (d *Duplex) resetWatchdog() {
	d.watchdogMu.Lock()
	defer d.watchdogMu.Unlock()
	if d.watchdog != nil {
		d.watchdog.Reset(d.cfg.WatchdogTimeout)
	}
}

func (d *Duplex) disarmWatchdog() {
	d.watchdogMu.Lock()
	defer d.watchdogMu.Unlock()
	if d.watchdog != nil {
		d.watchdog.Stop()
		d.watchdog = nil
	}
}

// Close stops the event loop and tears the call down.
func (d *Duplex) Close() error {
	d.disarmWatchdog()
	d.loopCancel()
	err := d.channel.Close()
	<-d.loopDone
	d.closeCore()
	return err
}
