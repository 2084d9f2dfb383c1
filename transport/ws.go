package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/callmux/callmux/types"
)

// frame is the JSON envelope for everything written to the socket. Exactly
// one of Audio or Event is set, discriminated by Kind.
type frame struct {
	Kind  string            `json:"kind"` // "audio" | "event"
	Audio *types.AudioChunk `json:"audio,omitempty"`
	Event *Event            `json:"event,omitempty"`
}

// WSAdapter adapts a WebSocket connection to the Adapter contract. Writes are
// serialized under a mutex because WebSocket does not support concurrent
// writes.
type WSAdapter struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex // protects writes and closed
	closed bool

	doneOnce sync.Once
	done     chan struct{}
}

var _ Adapter = (*WSAdapter)(nil)

// NewWSAdapter wraps an already-accepted WebSocket connection.
func NewWSAdapter(conn *websocket.Conn, logger *zap.Logger) *WSAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSAdapter{
		conn:   conn,
		logger: logger.With(zap.String("component", "ws_adapter")),
		done:   make(chan struct{}),
	}
}

// DialWS connects to a WebSocket media endpoint and returns an adapter over
// the connection.
func DialWS(ctx context.Context, url string, logger *zap.Logger) (*WSAdapter, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, types.NewError(types.ErrTransportClosed, "websocket dial failed").WithCause(err)
	}
	return NewWSAdapter(conn, logger), nil
}

// DeliverAudio sends one synthesized audio chunk as a JSON frame.
func (w *WSAdapter) DeliverAudio(ctx context.Context, chunk types.AudioChunk) error {
	return w.writeFrame(ctx, frame{Kind: "audio", Audio: &chunk})
}

// DeliverEvent sends one lifecycle event as a JSON frame.
func (w *WSAdapter) DeliverEvent(ctx context.Context, ev Event) error {
	return w.writeFrame(ctx, frame{Kind: "event", Event: &ev})
}

func (w *WSAdapter) writeFrame(ctx context.Context, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return types.NewError(types.ErrInvalidInput, "marshal frame").WithCause(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return types.NewError(types.ErrTransportClosed, "adapter closed")
	}
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		w.markDoneLocked()
		return types.NewError(types.ErrTransportClosed, "websocket write failed").WithCause(err)
	}
	return nil
}

// ReadInbound reads the next inbound event from the media endpoint. A read
// failure means the peer went away; the adapter is marked done.
func (w *WSAdapter) ReadInbound(ctx context.Context) (*Inbound, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		w.markDone()
		return nil, types.NewError(types.ErrTransportClosed, "websocket read failed").WithCause(err)
	}

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, types.NewError(types.ErrInvalidInput, "unmarshal inbound event").WithCause(err)
	}
	return &in, nil
}

// Done is closed when the connection has terminated from either side.
func (w *WSAdapter) Done() <-chan struct{} {
	return w.done
}

// Close terminates the connection. Idempotent.
func (w *WSAdapter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.doneOnce.Do(func() { close(w.done) })

	return w.conn.Close(websocket.StatusNormalClosure, "closing")
}

func (w *WSAdapter) markDone() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markDoneLocked()
}

func (w *WSAdapter) markDoneLocked() {
	w.closed = true
	w.doneOnce.Do(func() { close(w.done) })
}
