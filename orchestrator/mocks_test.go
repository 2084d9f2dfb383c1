package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/callmux/callmux/agent"
	"github.com/callmux/callmux/handoff"
	"github.com/callmux/callmux/pool"
	"github.com/callmux/callmux/session"
	"github.com/callmux/callmux/transport"
	"github.com/callmux/callmux/types"
)

// --- transport ---

type mockAdapter struct {
	mu     sync.Mutex
	audio  []types.AudioChunk
	events []transport.Event

	done      chan struct{}
	closeOnce sync.Once
}

var _ transport.Adapter = (*mockAdapter)(nil)

func newMockAdapter() *mockAdapter {
	return &mockAdapter{done: make(chan struct{})}
}

func (m *mockAdapter) DeliverAudio(_ context.Context, chunk types.AudioChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = append(m.audio, chunk)
	return nil
}

func (m *mockAdapter) DeliverEvent(_ context.Context, ev transport.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockAdapter) Done() <-chan struct{} { return m.done }

func (m *mockAdapter) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *mockAdapter) audioCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audio)
}

func (m *mockAdapter) eventsOf(t transport.EventType) []transport.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []transport.Event
	for _, ev := range m.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// --- collaborators ---

type mockReasoner struct {
	RespondFunc func(ctx context.Context, in ReasonInput, tools ToolExecutor) (*ReasonOutput, error)
}

func (m *mockReasoner) Respond(ctx context.Context, in ReasonInput, tools ToolExecutor) (*ReasonOutput, error) {
	return m.RespondFunc(ctx, in, tools)
}

type mockRecognizer struct {
	RecognizeFunc func(ctx context.Context, client pool.Client, frames []types.AudioChunk) (*types.TranscriptEvent, error)
}

func (m *mockRecognizer) Recognize(ctx context.Context, client pool.Client, frames []types.AudioChunk) (*types.TranscriptEvent, error) {
	return m.RecognizeFunc(ctx, client, frames)
}

// mockSynthesizer streams chunks sized chunkMillis each, pacing by delay so
// interruption tests can cut it mid-stream.
type mockSynthesizer struct {
	chunks int
	delay  time.Duration
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, _ pool.Client, text string, emit func(types.AudioChunk) error) error {
	n := m.chunks
	if n <= 0 {
		n = 3
	}
	for i := 0; i < n; i++ {
		if m.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.delay):
			}
		}
		chunk := types.AudioChunk{
			Data:       make([]byte, 640), // 20ms of 16kHz mono PCM
			SampleRate: 16000,
			Channels:   1,
			Timestamp:  time.Now(),
			IsFinal:    i == n-1,
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

type mockTools struct {
	DispatchFunc func(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

func (m *mockTools) Dispatch(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if m.DispatchFunc == nil {
		return map[string]any{}, nil
	}
	return m.DispatchFunc(ctx, name, args)
}

// --- realtime channel (duplex) ---

type mockChannel struct {
	inbound chan ChannelEvent

	mu   sync.Mutex
	sent []ChannelEvent

	closeOnce sync.Once
	closed    chan struct{}
}

func newMockChannel() *mockChannel {
	return &mockChannel{
		inbound: make(chan ChannelEvent, 64),
		closed:  make(chan struct{}),
	}
}

func (m *mockChannel) Send(_ context.Context, ev ChannelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, ev)
	return nil
}

func (m *mockChannel) Receive(ctx context.Context) (*ChannelEvent, error) {
	select {
	case ev := <-m.inbound:
		return &ev, nil
	case <-m.closed:
		return nil, types.NewError(types.ErrTransportClosed, "channel closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockChannel) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockChannel) sentOf(t ChannelEventType) []ChannelEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ChannelEvent
	for _, ev := range m.sent {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// --- pooled clients ---

type fakeClient struct {
	healthy atomic.Bool
	closed  atomic.Bool
}

func newFakeClient() *fakeClient {
	c := &fakeClient{}
	c.healthy.Store(true)
	return c
}

func (c *fakeClient) Healthy() bool { return c.healthy.Load() && !c.closed.Load() }

func (c *fakeClient) Close() error {
	c.closed.Store(true)
	return nil
}

func workingFactory(context.Context, pool.Kind) (pool.Client, error) {
	return newFakeClient(), nil
}

func failingFactory(context.Context, pool.Kind) (pool.Client, error) {
	return nil, errors.New("vendor unavailable")
}

// --- wiring helpers ---

type fixture struct {
	state   *session.State
	store   session.Store
	reg     *agent.Registry
	router  *handoff.Router
	adapter *mockAdapter
	deps    Deps
}

func defaultAgents() []agent.Definition {
	return []agent.Definition{
		{
			Name:           "triage",
			Description:    "front door",
			Greeting:       "Hello, how can I help?",
			AllowInterrupt: true,
		},
		{
			Name:           "billing",
			Description:    "billing questions",
			Trigger:        "transfer_to_billing",
			Greeting:       "Billing here, I have your details.",
			ReturnGreeting: "Billing again, welcome back.",
			AllowInterrupt: true,
		},
	}
}

func newFixture(defs ...agent.Definition) *fixture {
	if len(defs) == 0 {
		defs = defaultAgents()
	}
	reg, err := agent.NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	router, err := handoff.BuildRoutingTable(reg.Snapshot(), zap.NewNop())
	if err != nil {
		panic(err)
	}
	f := &fixture{
		state:   session.NewState("sess-1", "triage"),
		store:   session.NewMemoryStore(),
		reg:     reg,
		router:  router,
		adapter: newMockAdapter(),
	}
	f.deps = Deps{
		State:    f.state,
		Store:    f.store,
		Router:   f.router,
		Registry: f.reg,
		Adapter:  f.adapter,
		Reasoner: &mockReasoner{
			RespondFunc: func(context.Context, ReasonInput, ToolExecutor) (*ReasonOutput, error) {
				return &ReasonOutput{Text: "hi there"}, nil
			},
		},
	}
	return f
}

// withSynthPool wires a synthesizer backed by a small warm pool.
func (f *fixture) withSynthPool(chunks int, delay time.Duration) *pool.Pool {
	cfg := pool.DefaultConfig(pool.KindSynthesizer)
	cfg.AffinityTTL = time.Minute
	p := pool.New(cfg, workingFactory, nil, zap.NewNop())
	_ = p.Prepare(context.Background(), 2, false)
	f.deps.Synthesizers = p
	f.deps.Synthesizer = &mockSynthesizer{chunks: chunks, delay: delay}
	return p
}
