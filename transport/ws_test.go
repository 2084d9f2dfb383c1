package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callmux/callmux/types"
)

// wsTestServer upgrades to WebSocket and echoes every message back.
func wsTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := conn.Write(r.Context(), typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialAdapter(t *testing.T, srv *httptest.Server) *WSAdapter {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := DialWS(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestWSAdapter_AudioRoundTrip(t *testing.T) {
	srv := wsTestServer(t)
	a := dialAdapter(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chunk := types.AudioChunk{
		Data:       []byte{0x01, 0x02, 0x03, 0x04},
		SampleRate: 16000,
		Channels:   1,
		Timestamp:  time.Now().Truncate(time.Millisecond),
	}
	require.NoError(t, a.DeliverAudio(ctx, chunk))

	// The echo server reflects the frame back as an inbound message; decode
	// fails into Inbound but proves the write path framed valid JSON.
	in, err := a.ReadInbound(ctx)
	require.NoError(t, err)
	require.NotNil(t, in)
}

func TestWSAdapter_EventRoundTrip(t *testing.T) {
	srv := wsTestServer(t)
	a := dialAdapter(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev := Event{
		Type:      EventHandoffApplied,
		SessionID: "sess-1",
		Agent:     "billing",
		Timestamp: time.Now().Truncate(time.Millisecond),
	}
	require.NoError(t, a.DeliverEvent(ctx, ev))
}

func TestWSAdapter_CloseIsTerminal(t *testing.T) {
	srv := wsTestServer(t)
	a := dialAdapter(t, srv)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close()) // idempotent

	select {
	case <-a.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}

	err := a.DeliverAudio(context.Background(), types.AudioChunk{Data: []byte{1, 2}})
	require.Error(t, err)
	assert.Equal(t, types.ErrTransportClosed, types.GetErrorCode(err))
}

func TestWSAdapter_PeerCloseMarksDone(t *testing.T) {
	srv := wsTestServer(t)
	a := dialAdapter(t, srv)

	srv.CloseClientConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.ReadInbound(ctx)
	require.Error(t, err)
	assert.Equal(t, types.ErrTransportClosed, types.GetErrorCode(err))

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("Done must be closed after a peer disconnect")
	}
}
