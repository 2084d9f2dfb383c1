package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/callmux/callmux/agent"
	"github.com/callmux/callmux/handoff"
	"github.com/callmux/callmux/pool"
	"github.com/callmux/callmux/session"
	"github.com/callmux/callmux/transport"
	"github.com/callmux/callmux/types"
)

// Mode selects the concurrency strategy behind the Orchestrator contract.
type Mode string

const (
	// ModePipelined runs three cooperating stages over bounded queues.
	ModePipelined Mode = "pipelined"

	// ModeDuplex runs a single event loop over a bidirectional realtime
	// channel, with a watchdog for cancellation.
	ModeDuplex Mode = "duplex"
)

// Orchestrator is the per-call engine contract, implemented by Pipelined and
// Duplex. One instance owns exactly one call and its session state.
type Orchestrator interface {
	// StartTurn accepts one inbound user event. Audio frames accumulate until
	// a final frame closes the utterance; text is a complete utterance.
	StartTurn(ctx context.Context, ev types.InputEvent) error

	// Interrupt cancels any in-flight synthesis and egress. Idempotent and
	// safe to call concurrently; after it returns, no further audio of the
	// cancelled turn reaches the transport.
	Interrupt(reason string)

	// ExecuteToolCall routes a reasoning-layer tool invocation: handoff
	// triggers go through context transfer, everything else to the business
	// tools.
	ExecuteToolCall(ctx context.Context, name string, args map[string]any) (types.ToolResult, error)

	// ApplyHandoff transfers conversation ownership, immediately or at the
	// next safe point depending on the record and the call state.
	ApplyHandoff(ctx context.Context, rec *handoff.Record) error

	// EndTurn finalizes the current turn: pending handoff application,
	// sequence increment, persistence, return to idle.
	EndTurn(ctx context.Context) error

	// State returns the current call state.
	State() CallState

	// Close tears the call down and releases session-affine resources.
	Close() error
}

// Config tunes a call's orchestration behavior.
type Config struct {
	// Mode selects pipelined or duplex orchestration.
	Mode Mode `yaml:"mode" json:"mode"`

	// QueueBound is the capacity of the stage queues in pipelined mode.
	QueueBound int `yaml:"queue_bound" json:"queue_bound"`

	// FallbackPhrase is spoken when the reasoning layer fails for a turn.
	FallbackPhrase string `yaml:"fallback_phrase" json:"fallback_phrase"`

	// FillerPhrase is delivered while a pool-exhausted acquisition retries.
	FillerPhrase string `yaml:"filler_phrase" json:"filler_phrase"`

	// AcquireTimeout bounds the first pool acquisition of a turn.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`

	// RetryTimeout bounds the single retry after exhaustion.
	RetryTimeout time.Duration `yaml:"retry_timeout" json:"retry_timeout"`

	// WatchdogTimeout cancels a silent vendor response in duplex mode.
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout" json:"watchdog_timeout"`
}

// DefaultConfig returns orchestration defaults.
func DefaultConfig() Config {
	return Config{
		Mode:            ModePipelined,
		QueueBound:      32,
		FallbackPhrase:  "Sorry, I had trouble with that. Could you say it again?",
		FillerPhrase:    "One moment, please.",
		AcquireTimeout:  2 * time.Second,
		RetryTimeout:    5 * time.Second,
		WatchdogTimeout: 30 * time.Second,
	}
}

// Deps are the collaborators wired into an orchestrator instance.
type Deps struct {
	State        *session.State
	Store        session.Store
	Router       *handoff.Router
	Registry     *agent.Registry
	Recognizers  *pool.Pool
	Synthesizers *pool.Pool
	Adapter      transport.Adapter
	Reasoner     Reasoner
	Recognizer   Recognizer
	Synthesizer  Synthesizer
	Tools        Tools
	Channel      RealtimeChannel
	Recorder     Recorder
	Logger       *zap.Logger
}

// New constructs the orchestrator selected by cfg.Mode.
func New(cfg Config, deps Deps) (Orchestrator, error) {
	switch cfg.Mode {
	case ModePipelined, "":
		return NewPipelined(cfg, deps)
	case ModeDuplex:
		return NewDuplex(cfg, deps)
	default:
		return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("unknown orchestrator mode: %s", cfg.Mode))
	}
}

// errTurnInterrupted aborts egress for a cancelled turn; it never leaves the
// pipeline.
var errTurnInterrupted = errors.New("turn interrupted")

// core carries the state and operations shared by both orchestrator modes.
type core struct {
	mode Mode
	cfg  Config

	state        *session.State
	store        session.Store
	router       *handoff.Router
	registry     *agent.Registry
	recognizers  *pool.Pool
	synthesizers *pool.Pool
	adapter      transport.Adapter
	reasoner     Reasoner
	recognizer   Recognizer
	synthesizer  Synthesizer
	tools        Tools
	recorder     Recorder
	tracer       trace.Tracer
	logger       *zap.Logger

	sm *stateMachine

	// epoch tags audio with the turn generation it belongs to; Interrupt
	// bumps it, and emitAudio refuses stale chunks. The emit mutex doubles as
	// the barrier making the no-audio-after-interrupt guarantee hold.
	epoch  atomic.Uint64
	emitMu sync.Mutex

	turnMu        sync.Mutex
	turnCancel    context.CancelFunc
	turnStart     time.Time
	utteranceEnd  time.Time
	turnStatus    string
	lastUtterance string

	firstAudioSeen   bool // guarded by emitMu
	synthesizedNanos atomic.Int64
	deliveredNanos   atomic.Int64

	termOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func newCore(mode Mode, cfg Config, deps Deps) (*core, error) {
	if deps.State == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "orchestrator requires session state")
	}
	if deps.Store == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "orchestrator requires a session store")
	}
	if deps.Router == nil || deps.Registry == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "orchestrator requires a router and an agent registry")
	}
	if deps.Adapter == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "orchestrator requires a transport adapter")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	def := DefaultConfig()
	if cfg.QueueBound <= 0 {
		cfg.QueueBound = def.QueueBound
	}
	if cfg.FallbackPhrase == "" {
		cfg.FallbackPhrase = def.FallbackPhrase
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = def.AcquireTimeout
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = def.RetryTimeout
	}
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = def.WatchdogTimeout
	}

	c := &core{
		mode:         mode,
		cfg:          cfg,
		state:        deps.State,
		store:        deps.Store,
		router:       deps.Router,
		registry:     deps.Registry,
		recognizers:  deps.Recognizers,
		synthesizers: deps.Synthesizers,
		adapter:      deps.Adapter,
		reasoner:     deps.Reasoner,
		recognizer:   deps.Recognizer,
		synthesizer:  deps.Synthesizer,
		tools:        deps.Tools,
		recorder:     deps.Recorder,
		tracer:       otel.Tracer("callmux/orchestrator"),
		logger: logger.With(
			zap.String("component", "orchestrator"),
			zap.String("mode", string(mode)),
			zap.String("session_id", deps.State.SessionID),
		),
		sm:   newStateMachine(),
		stop: make(chan struct{}),
	}

	if c.recorder != nil {
		c.recorder.RecordSessionStart()
	}

	// Transport close is terminal from any state.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-c.adapter.Done():
			c.terminate("transport closed")
		case <-c.stop:
		}
	}()

	return c, nil
}

// State returns the current call state.
func (c *core) State() CallState {
	return c.sm.current()
}

// Interrupt cancels in-flight synthesis and egress. See the Orchestrator
// contract for the delivery guarantee.
func (c *core) Interrupt(reason string) {
	c.interrupt(reason)
}

// interrupt reports whether it actually cancelled a turn, so wrappers can
// avoid duplicate side effects on redundant calls.
func (c *core) interrupt(reason string) bool {
	moved := c.sm.transitionIf(StateResponding, StateListening) ||
		c.sm.transitionIf(StateThinking, StateListening) ||
		c.sm.transitionIf(StateHandoffPending, StateListening)
	if !moved {
		return false
	}

	c.epoch.Add(1)

	c.turnMu.Lock()
	cancel := c.turnCancel
	c.turnCancel = nil
	c.turnMu.Unlock()
	if cancel != nil {
		cancel()
	}

	// Barrier: a delivery already past the epoch check finishes before we
	// return; everything after sees the new epoch and is dropped.
	c.emitMu.Lock()
	c.emitMu.Unlock()

	cutoff := time.Duration(c.synthesizedNanos.Load() - c.deliveredNanos.Load())
	if cutoff < 0 {
		cutoff = 0
	}
	if c.recorder != nil {
		c.recorder.RecordInterruption(reason, cutoff)
	}
	c.deliverEvent(context.Background(), transport.Event{
		Type:   transport.EventInterrupted,
		Reason: reason,
	})
	c.logger.Info("turn interrupted",
		zap.String("reason", reason),
		zap.Duration("cutoff", cutoff))

	// The abandoned turn never reaches EndTurn, so a transfer deferred to the
	// turn's end applies here: the next utterance belongs to the new owner.
	c.turnMu.Lock()
	pending := c.state.PendingHandoff
	c.state.PendingHandoff = nil
	c.turnMu.Unlock()
	if pending != nil {
		if def, ok := c.registry.Snapshot().Get(pending.TargetAgent); ok {
			_ = c.applyNow(context.Background(), pending, def)
		} else {
			c.recordHandoff(pending.SourceAgent, pending.TargetAgent, string(handoff.StatusFailed))
			c.logger.Warn("pending handoff target vanished", zap.String("target", pending.TargetAgent))
		}
	}
	return true
}

// ExecuteToolCall classifies and dispatches one tool invocation. A resolved
// handoff trigger still runs through the business dispatcher first: its
// result map is the context payload the transfer carries.
func (c *core) ExecuteToolCall(ctx context.Context, name string, args map[string]any) (types.ToolResult, error) {
	ctx, span := c.tracer.Start(ctx, "orchestrator.tool_call",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	target, isHandoff := c.router.Resolve(name)
	if !isHandoff {
		if c.tools == nil {
			return types.ToolResult{}, types.NewError(types.ErrInvalidInput,
				fmt.Sprintf("no dispatcher for tool %s", name))
		}
		data, err := c.tools.Dispatch(ctx, name, args)
		return types.ToolResult{Kind: types.ToolResultBusiness, Name: name, Data: data}, err
	}

	result := map[string]any{}
	if c.tools != nil {
		data, err := c.tools.Dispatch(ctx, name, args)
		if err != nil {
			c.logger.Warn("handoff trigger tool failed; transferring with argument context only",
				zap.String("tool", name), zap.Error(err))
		} else if data != nil {
			result = data
		}
	}

	rec := c.router.BuildContext(
		c.state.ActiveAgent, target, result, args,
		c.state.SharedVariables, c.currentUtterance(),
	)
	if err := c.ApplyHandoff(ctx, rec); err != nil {
		return types.ToolResult{Kind: types.ToolResultHandoff, Name: name, Data: result}, err
	}
	return types.ToolResult{Kind: types.ToolResultHandoff, Name: name, Data: result}, nil
}

// ApplyHandoff transfers ownership per the record. With should_interrupt the
// current turn is cancelled and the transfer applies immediately; otherwise a
// transfer requested mid-turn is deferred to the turn's end, and a newer
// request replaces an older pending one.
func (c *core) ApplyHandoff(ctx context.Context, rec *handoff.Record) error {
	ctx, span := c.tracer.Start(ctx, "orchestrator.handoff",
		trace.WithAttributes(
			attribute.String("handoff.source", rec.SourceAgent),
			attribute.String("handoff.target", rec.TargetAgent),
		))
	defer span.End()

	def, ok := c.registry.Snapshot().Get(rec.TargetAgent)
	if !ok {
		c.recordHandoff(rec.SourceAgent, rec.TargetAgent, string(handoff.StatusFailed))
		c.deliverEvent(ctx, transport.Event{
			Type:   transport.EventError,
			Reason: "unknown handoff target",
			Data:   map[string]any{"target_agent": rec.TargetAgent},
		})
		c.logger.Warn("handoff to unknown target; call continues with source agent",
			zap.String("target", rec.TargetAgent))
		return types.NewError(types.ErrUnknownHandoffTarget,
			fmt.Sprintf("no agent registered as %s", rec.TargetAgent)).
			WithRetryable(true).WithSession(c.state.SessionID)
	}

	c.turnMu.Lock()
	active := c.state.ActiveAgent
	c.turnMu.Unlock()
	if rec.TargetAgent == active {
		c.logger.Debug("handoff to already-active agent ignored",
			zap.String("target", rec.TargetAgent))
		return nil
	}

	if rec.ShouldInterrupt {
		// The newer request replaces any pending one; clear it so the
		// interrupt path does not apply the older transfer first.
		c.turnMu.Lock()
		c.state.PendingHandoff = nil
		c.turnMu.Unlock()
		c.interrupt("handoff")
		return c.applyNow(ctx, rec, def)
	}

	if st := c.sm.current(); st == StateThinking || st == StateResponding || st == StateHandoffPending {
		c.turnMu.Lock()
		c.state.PendingHandoff = rec
		c.turnMu.Unlock()
		c.sm.transitionIf(st, StateHandoffPending)
		c.recordHandoff(rec.SourceAgent, rec.TargetAgent, string(handoff.StatusRequested))
		c.logger.Info("handoff deferred until end of turn",
			zap.String("target", rec.TargetAgent))
		return nil
	}
	return c.applyNow(ctx, rec, def)
}

// applyNow performs the ownership transfer and delivers the target's entry
// greeting. The greeting uses a detached context: the requesting turn may
// already be cancelled.
func (c *core) applyNow(ctx context.Context, rec *handoff.Record, def agent.Definition) error {
	returning := c.state.HasVisited(rec.TargetAgent)

	c.turnMu.Lock()
	c.state.SetActiveAgent(rec.TargetAgent)
	c.state.MergeVariables(rec.ContextData)
	c.state.PendingHandoff = nil
	c.turnMu.Unlock()

	c.recordHandoff(rec.SourceAgent, rec.TargetAgent, string(handoff.StatusApplied))
	c.deliverEvent(ctx, transport.Event{
		Type:   transport.EventHandoffApplied,
		Agent:  rec.TargetAgent,
		Reason: rec.Reason,
		Data:   map[string]any{"handoff_id": rec.ID, "source_agent": rec.SourceAgent},
	})
	c.logger.Info("handoff applied",
		zap.String("source", rec.SourceAgent),
		zap.String("target", rec.TargetAgent),
		zap.Bool("returning", returning))

	if greeting := def.EntryGreeting(returning); greeting != "" {
		c.speak(context.WithoutCancel(ctx), greeting)
		c.recordHandoff(rec.SourceAgent, rec.TargetAgent, string(handoff.StatusGreeted))
	}
	return nil
}

// EndTurn finalizes the turn: sequence increment, deferred handoff, persist,
// back to idle. Persistence failure is recoverable; the in-memory state stays
// authoritative until the next successful save.
func (c *core) EndTurn(ctx context.Context) error {
	c.turnMu.Lock()
	c.state.TurnSequence++
	pending := c.state.PendingHandoff
	c.state.PendingHandoff = nil
	status := c.turnStatus
	started := c.turnStart
	agentName := c.state.ActiveAgent
	c.turnCancel = nil
	c.turnMu.Unlock()

	if status == "" {
		status = "ok"
	}

	if pending != nil {
		if def, ok := c.registry.Snapshot().Get(pending.TargetAgent); ok {
			_ = c.applyNow(ctx, pending, def)
		} else {
			c.recordHandoff(pending.SourceAgent, pending.TargetAgent, string(handoff.StatusFailed))
			c.logger.Warn("pending handoff target vanished", zap.String("target", pending.TargetAgent))
		}
	}

	c.persist(ctx)

	if !c.sm.transitionIf(StateResponding, StateIdle) {
		if !c.sm.transitionIf(StateHandoffPending, StateIdle) {
			if !c.sm.transitionIf(StateThinking, StateIdle) {
				c.sm.transitionIf(StateListening, StateIdle)
			}
		}
	}

	if c.recorder != nil && !started.IsZero() {
		c.recorder.RecordTurn(agentName, string(c.mode), status, time.Since(started))
	}
	c.deliverEvent(ctx, transport.Event{
		Type: transport.EventTurnEnded,
		Data: map[string]any{"turn_sequence": c.state.TurnSequence},
	})
	c.logger.Debug("turn ended",
		zap.Uint64("turn_sequence", c.state.TurnSequence),
		zap.String("status", status))
	return nil
}

// beginTurn resets per-turn bookkeeping and returns the turn context and the
// epoch its audio is tagged with.
func (c *core) beginTurn(parent context.Context, utterance string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	c.emitMu.Lock()
	c.firstAudioSeen = false
	c.emitMu.Unlock()
	c.synthesizedNanos.Store(0)
	c.deliveredNanos.Store(0)

	c.turnMu.Lock()
	c.turnCancel = cancel
	c.turnStart = time.Now()
	c.utteranceEnd = time.Now()
	c.turnStatus = "ok"
	if utterance != "" {
		c.lastUtterance = utterance
	}
	c.turnMu.Unlock()

	return ctx, c.epoch.Load()
}

// emitAudio delivers one chunk unless the turn it belongs to was interrupted.
func (c *core) emitAudio(ctx context.Context, epoch uint64, chunk types.AudioChunk) error {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if epoch != c.epoch.Load() {
		return errTurnInterrupted
	}
	if err := c.adapter.DeliverAudio(ctx, chunk); err != nil {
		return err
	}
	c.deliveredNanos.Add(int64(chunk.Duration()))
	if !c.firstAudioSeen {
		c.firstAudioSeen = true
		if c.recorder != nil {
			c.recorder.RecordFirstAudio(string(c.mode), time.Since(c.utteranceEndTime()))
		}
	}
	return nil
}

// speak synthesizes and delivers a standalone phrase (greeting, fallback)
// under the current epoch, degrading to a text event when no synthesizer is
// wired or the pool stays exhausted.
func (c *core) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if c.synthesizer == nil || c.synthesizers == nil {
		c.deliverEvent(ctx, transport.Event{
			Type:  transport.EventTranscript,
			Agent: c.state.ActiveAgent,
			Text:  text,
		})
		return
	}

	epoch := c.epoch.Load()
	res, err := c.acquireWithRetry(ctx, c.synthesizers)
	if err != nil {
		c.logger.Warn("synthesizer unavailable; delivering text only", zap.Error(err))
		c.deliverEvent(ctx, transport.Event{
			Type:  transport.EventTranscript,
			Agent: c.state.ActiveAgent,
			Text:  text,
		})
		return
	}
	defer c.synthesizers.ReleaseForSession(c.state.SessionID, res)

	err = c.synthesizer.Synthesize(ctx, res.Client(), text, func(chunk types.AudioChunk) error {
		c.synthesizedNanos.Add(int64(chunk.Duration()))
		return c.emitAudio(ctx, epoch, chunk)
	})
	if err != nil && !errors.Is(err, errTurnInterrupted) {
		c.logger.Warn("synthesis failed", zap.Error(err))
	}
}

// acquireWithRetry acquires a session-affine handle, degrading on exhaustion:
// a filler phrase event goes out and the acquisition retries once with a
// larger timeout. Exhaustion never terminates the call.
func (c *core) acquireWithRetry(ctx context.Context, p *pool.Pool) (*pool.Resource, error) {
	res, _, err := p.AcquireForSession(ctx, c.state.SessionID, c.cfg.AcquireTimeout)
	if err == nil {
		return res, nil
	}
	if !types.IsCode(err, types.ErrPoolExhausted) {
		return nil, err
	}

	c.logger.Warn("pool exhausted; degrading and retrying once", zap.Error(err))
	if c.cfg.FillerPhrase != "" {
		c.deliverEvent(ctx, transport.Event{
			Type:  transport.EventTranscript,
			Agent: c.state.ActiveAgent,
			Text:  c.cfg.FillerPhrase,
		})
	}
	res, _, err = p.AcquireForSession(ctx, c.state.SessionID, c.cfg.RetryTimeout)
	return res, err
}

// reason invokes the reasoning collaborator, converting a per-turn failure
// into the spoken fallback instead of propagating it.
func (c *core) reason(ctx context.Context, utterance string) string {
	in := ReasonInput{
		SessionID:       c.state.SessionID,
		Agent:           c.state.ActiveAgent,
		Utterance:       utterance,
		SharedVariables: c.state.SharedVariables,
		TurnSequence:    c.state.TurnSequence,
	}
	if def, ok := c.registry.Snapshot().Get(c.state.ActiveAgent); ok {
		in.AgentDescription = def.Description
	}
	for name := range c.state.VisitedAgents {
		in.VisitedAgents = append(in.VisitedAgents, name)
	}

	out, err := c.reasoner.Respond(ctx, in, c)
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		c.setTurnStatus("reasoning_failure")
		c.logger.Error("reasoning failed; speaking fallback", zap.Error(err))
		return c.cfg.FallbackPhrase
	}
	if out == nil {
		return ""
	}
	return out.Text
}

func (c *core) persist(ctx context.Context) {
	c.turnMu.Lock()
	c.state.UpdatedAt = time.Now()
	snapshot := c.state.Clone()
	c.turnMu.Unlock()

	if err := c.store.Save(ctx, snapshot.SessionID, snapshot); err != nil {
		c.logger.Error("session save failed; in-memory state stays authoritative", zap.Error(err))
		if c.recorder != nil {
			c.recorder.RecordPersistenceFailure("session_store")
		}
	}
}

// terminate tears the call down once, from whichever side noticed first.
func (c *core) terminate(reason string) {
	c.termOnce.Do(func() {
		c.epoch.Add(1)

		c.turnMu.Lock()
		cancel := c.turnCancel
		c.turnCancel = nil
		c.turnMu.Unlock()
		if cancel != nil {
			cancel()
		}
		c.sm.terminate()

		if c.synthesizers != nil {
			c.synthesizers.EndSession(c.state.SessionID)
		}
		if c.recognizers != nil {
			c.recognizers.EndSession(c.state.SessionID)
		}

		ctx, cancelSave := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelSave()
		c.persist(ctx)

		if c.recorder != nil {
			c.recorder.RecordSessionEnd()
		}
		c.logger.Info("call terminated", zap.String("reason", reason))
	})
}

func (c *core) closeCore() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	c.terminate("closed")
	c.wg.Wait()
}

func (c *core) deliverEvent(ctx context.Context, ev transport.Event) {
	ev.SessionID = c.state.SessionID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := c.adapter.DeliverEvent(ctx, ev); err != nil {
		c.logger.Debug("event delivery failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func (c *core) recordHandoff(source, target, status string) {
	if c.recorder != nil {
		c.recorder.RecordHandoff(source, target, status)
	}
}

func (c *core) currentUtterance() string {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	return c.lastUtterance
}

func (c *core) setUtterance(text string) {
	c.turnMu.Lock()
	c.lastUtterance = text
	c.turnMu.Unlock()
}

func (c *core) setTurnStatus(status string) {
	c.turnMu.Lock()
	c.turnStatus = status
	c.turnMu.Unlock()
}

func (c *core) utteranceEndTime() time.Time {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	return c.utteranceEnd
}

// bargeInAllowed reports whether the active agent honors interruption.
func (c *core) bargeInAllowed() bool {
	def, ok := c.registry.Snapshot().Get(c.state.ActiveAgent)
	return ok && def.AllowInterrupt
}
