package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/callmux/callmux/internal/channel"
	"github.com/callmux/callmux/transport"
	"github.com/callmux/callmux/types"
)

// Pipelined orchestrates a call as three cooperating stages: ingestion
// (buffers inbound frames until end of utterance), reasoning plus synthesis,
// and egress. The stages of a turn are connected by a bounded queue; a full
// queue applies backpressure to synthesis instead of dropping audio.
type Pipelined struct {
	*core

	framesMu sync.Mutex
	frames   []types.AudioChunk

	turns sync.WaitGroup
}

var _ Orchestrator = (*Pipelined)(nil)

// NewPipelined builds a pipelined orchestrator for one call.
func NewPipelined(cfg Config, deps Deps) (*Pipelined, error) {
	if deps.Reasoner == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "pipelined orchestrator requires a reasoner")
	}
	c, err := newCore(ModePipelined, cfg, deps)
	if err != nil {
		return nil, err
	}
	return &Pipelined{core: c}, nil
}

// StartTurn accepts one inbound event. Non-final audio frames buffer and
// return immediately; a final frame or a text utterance launches the turn
// asynchronously. With a turn already in flight, barge-in interrupts it when
// the active agent allows that, otherwise the event is rejected as in-flight.
func (p *Pipelined) StartTurn(ctx context.Context, ev types.InputEvent) error {
	if ev.SessionID != "" && ev.SessionID != p.state.SessionID {
		return types.NewError(types.ErrInvalidInput, "input event for a different session").
			WithSession(p.state.SessionID)
	}

	switch st := p.sm.current(); st {
	case StateTerminated:
		return types.NewError(types.ErrTransportClosed, "call terminated")
	case StateThinking, StateResponding, StateHandoffPending:
		if !p.bargeInAllowed() {
			return types.NewError(types.ErrTurnInFlight, "turn in flight and barge-in disabled").
				WithRetryable(true)
		}
		p.interrupt("barge-in")
	}
	p.sm.transitionIf(StateIdle, StateListening)

	var utterance string
	var frames []types.AudioChunk
	switch {
	case ev.Text != "":
		utterance = ev.Text
	case ev.Audio != nil:
		p.framesMu.Lock()
		p.frames = append(p.frames, *ev.Audio)
		if !ev.Audio.IsFinal {
			p.framesMu.Unlock()
			return nil
		}
		frames = p.frames
		p.frames = nil
		p.framesMu.Unlock()
	default:
		return types.NewError(types.ErrInvalidInput, "input event carries neither audio nor text")
	}

	if !p.sm.transitionIf(StateListening, StateThinking) {
		return types.NewError(types.ErrTurnInFlight, "turn already launching").WithRetryable(true)
	}

	tctx, epoch := p.beginTurn(ctx, utterance)
	p.deliverEvent(ctx, transport.Event{Type: transport.EventTurnStarted, Agent: p.state.ActiveAgent})

	p.turns.Add(1)
	go func() {
		defer p.turns.Done()
		p.runTurn(tctx, epoch, utterance, frames)
	}()
	return nil
}

// runTurn drives one turn to completion or interruption.
func (p *Pipelined) runTurn(ctx context.Context, epoch uint64, utterance string, frames []types.AudioChunk) {
	ctx, span := p.tracer.Start(ctx, "orchestrator.turn",
		trace.WithAttributes(
			attribute.String("session.id", p.state.SessionID),
			attribute.String("agent", p.state.ActiveAgent),
		))
	defer span.End()

	if utterance == "" && len(frames) > 0 {
		utterance = p.recognizeUtterance(ctx, frames)
		if utterance == "" {
			// Nothing recognizable; close the turn quietly.
			p.setTurnStatus("empty_utterance")
			if epoch == p.epoch.Load() {
				_ = p.EndTurn(ctx)
			}
			return
		}
		p.setUtterance(utterance)
		p.deliverEvent(ctx, transport.Event{Type: transport.EventTranscript, Text: utterance})
	}

	out := channel.NewBounded[types.AudioChunk](p.cfg.QueueBound)
	g, gctx := errgroup.WithContext(ctx)

	// Reasoning plus synthesis stage.
	g.Go(func() error {
		defer out.Close()
		text := p.reason(gctx, utterance)
		if text == "" || gctx.Err() != nil {
			return nil
		}
		p.sm.transitionIf(StateThinking, StateResponding)
		return p.synthesizeInto(gctx, text, out)
	})

	// Egress stage.
	g.Go(func() error {
		for {
			chunk, err := out.Receive(gctx)
			if errors.Is(err, channel.ErrClosed) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := p.emitAudio(gctx, epoch, chunk); err != nil {
				if errors.Is(err, errTurnInterrupted) {
					out.Drain()
					return nil
				}
				return err
			}
		}
	})

	err := g.Wait()
	out.Close()

	if epoch != p.epoch.Load() {
		// Interrupted: state already moved to LISTENING, no finalization.
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("turn pipeline failed", zap.Error(err))
		p.setTurnStatus("pipeline_failure")
	}
	_ = p.EndTurn(ctx)
}

// recognizeUtterance transcribes the buffered frames with a pooled handle.
// Failures degrade to an empty utterance rather than ending the call.
func (p *Pipelined) recognizeUtterance(ctx context.Context, frames []types.AudioChunk) string {
	if p.recognizer == nil || p.recognizers == nil {
		p.logger.Warn("audio input without a recognizer wired; dropping utterance")
		return ""
	}

	res, err := p.acquireWithRetry(ctx, p.recognizers)
	if err != nil {
		p.logger.Warn("recognizer unavailable; dropping utterance", zap.Error(err))
		return ""
	}
	defer p.recognizers.ReleaseForSession(p.state.SessionID, res)

	tr, err := p.recognizer.Recognize(ctx, res.Client(), frames)
	if err != nil {
		p.logger.Warn("recognition failed; dropping utterance", zap.Error(err))
		return ""
	}
	return tr.Text
}

// synthesizeInto renders the reply into the egress queue. Pool exhaustion
// after the retry degrades to a text-only reply; the call stays alive.
func (p *Pipelined) synthesizeInto(ctx context.Context, text string, out *channel.Bounded[types.AudioChunk]) error {
	if p.synthesizer == nil || p.synthesizers == nil {
		p.deliverEvent(ctx, transport.Event{
			Type:  transport.EventTranscript,
			Agent: p.state.ActiveAgent,
			Text:  text,
		})
		return nil
	}

	res, err := p.acquireWithRetry(ctx, p.synthesizers)
	if err != nil {
		p.logger.Warn("synthesizer unavailable; delivering text only", zap.Error(err))
		p.deliverEvent(ctx, transport.Event{
			Type:  transport.EventTranscript,
			Agent: p.state.ActiveAgent,
			Text:  text,
		})
		return nil
	}
	defer p.synthesizers.ReleaseForSession(p.state.SessionID, res)

	err = p.synthesizer.Synthesize(ctx, res.Client(), text, func(chunk types.AudioChunk) error {
		p.synthesizedNanos.Add(int64(chunk.Duration()))
		return out.Send(ctx, chunk)
	})
	if err != nil && ctx.Err() == nil && !errors.Is(err, channel.ErrClosed) {
		return err
	}
	return nil
}

// Close tears the call down and waits for in-flight turn goroutines.
func (p *Pipelined) Close() error {
	p.closeCore()
	p.turns.Wait()
	return nil
}
