// Package callmux provides a convenience entry point for wiring a call
// orchestrator with minimal boilerplate.
//
// Usage:
//
//	import "github.com/callmux/callmux"
//
//	orch, err := callmux.New("sess-42",
//	    callmux.WithAgents(agents...),
//	    callmux.WithAdapter(myAdapter),
//	    callmux.WithReasoner(myReasoner),
//	)
//
// Defaults favor a working engine out of the box: pipelined mode, an
// in-memory session store, and the first agent as the call owner. Anything
// beyond that — Redis-backed state, speech pools, duplex channels — is
// plugged in with options or by using the subpackages directly.
package callmux

import (
	"go.uber.org/zap"

	"github.com/callmux/callmux/agent"
	"github.com/callmux/callmux/handoff"
	"github.com/callmux/callmux/orchestrator"
	"github.com/callmux/callmux/pool"
	"github.com/callmux/callmux/session"
	"github.com/callmux/callmux/transport"
	"github.com/callmux/callmux/types"
)

// Option configures the orchestrator created by [New].
type Option func(*options)

type options struct {
	cfg    orchestrator.Config
	agents []agent.Definition
	store  session.Store
	state  *session.State

	adapter      transport.Adapter
	reasoner     orchestrator.Reasoner
	recognizer   orchestrator.Recognizer
	synthesizer  orchestrator.Synthesizer
	tools        orchestrator.Tools
	channel      orchestrator.RealtimeChannel
	recorder     orchestrator.Recorder
	recognizers  *pool.Pool
	synthesizers *pool.Pool
	logger       *zap.Logger
}

// WithConfig replaces the default orchestrator configuration.
func WithConfig(cfg orchestrator.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithMode selects pipelined or duplex orchestration.
func WithMode(mode orchestrator.Mode) Option {
	return func(o *options) { o.cfg.Mode = mode }
}

// WithAgents sets the agents available for handoff routing. The first agent
// owns the call at start unless the session state says otherwise.
func WithAgents(defs ...agent.Definition) Option {
	return func(o *options) { o.agents = defs }
}

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store session.Store) Option {
	return func(o *options) { o.store = store }
}

// WithState resumes from existing session state instead of a fresh one.
func WithState(state *session.State) Option {
	return func(o *options) { o.state = state }
}

// WithAdapter sets the outbound transport adapter. Required.
func WithAdapter(a transport.Adapter) Option {
	return func(o *options) { o.adapter = a }
}

// WithReasoner sets the reasoning collaborator. Required in pipelined mode.
func WithReasoner(r orchestrator.Reasoner) Option {
	return func(o *options) { o.reasoner = r }
}

// WithRecognizer sets the speech-to-text collaborator.
func WithRecognizer(r orchestrator.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// WithSynthesizer sets the text-to-speech collaborator.
func WithSynthesizer(s orchestrator.Synthesizer) Option {
	return func(o *options) { o.synthesizer = s }
}

// WithTools sets the business tool dispatcher.
func WithTools(t orchestrator.Tools) Option {
	return func(o *options) { o.tools = t }
}

// WithChannel sets the vendor realtime channel. Required in duplex mode.
func WithChannel(ch orchestrator.RealtimeChannel) Option {
	return func(o *options) { o.channel = ch }
}

// WithPools sets the recognizer and synthesizer resource pools.
func WithPools(recognizers, synthesizers *pool.Pool) Option {
	return func(o *options) {
		o.recognizers = recognizers
		o.synthesizers = synthesizers
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r orchestrator.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates an orchestrator for one call with minimal configuration.
// At minimum, agents, an adapter, and a reasoner (pipelined) or channel
// (duplex) must be provided.
func New(sessionID string, opts ...Option) (orchestrator.Orchestrator, error) {
	o := &options{cfg: orchestrator.DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.agents) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "at least one agent is required")
	}

	registry, err := agent.NewRegistry(o.agents...)
	if err != nil {
		return nil, err
	}
	router, err := handoff.BuildRoutingTable(registry.Snapshot(), o.logger)
	if err != nil {
		return nil, err
	}

	if o.store == nil {
		o.store = session.NewMemoryStore()
	}
	state := o.state
	if state == nil {
		state = session.NewState(sessionID, o.agents[0].Name)
	}

	return orchestrator.New(o.cfg, orchestrator.Deps{
		State:        state,
		Store:        o.store,
		Router:       router,
		Registry:     registry,
		Recognizers:  o.recognizers,
		Synthesizers: o.synthesizers,
		Adapter:      o.adapter,
		Reasoner:     o.reasoner,
		Recognizer:   o.recognizer,
		Synthesizer:  o.synthesizer,
		Tools:        o.tools,
		Channel:      o.channel,
		Recorder:     o.recorder,
		Logger:       o.logger,
	})
}
