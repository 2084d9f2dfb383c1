package main

import (
	"context"
	"strings"
	"time"

	"github.com/callmux/callmux/orchestrator"
	"github.com/callmux/callmux/pool"
	"github.com/callmux/callmux/types"
)

// The loopback vendor treats audio payloads as UTF-8 text. It exists so the
// binary exercises the full recognize/reason/synthesize pipeline without a
// speech vendor; real deployments inject their own collaborators.

type loopbackClient struct {
	closed bool
}

func (c *loopbackClient) Healthy() bool { return !c.closed }

func (c *loopbackClient) Close() error {
	c.closed = true
	return nil
}

func loopbackFactory(_ context.Context, _ pool.Kind) (pool.Client, error) {
	return &loopbackClient{}, nil
}

// loopbackRecognizer joins the buffered frames and reads them as text.
type loopbackRecognizer struct{}

func (loopbackRecognizer) Recognize(_ context.Context, _ pool.Client, frames []types.AudioChunk) (*types.TranscriptEvent, error) {
	var b strings.Builder
	for _, f := range frames {
		b.Write(f.Data)
	}
	return &types.TranscriptEvent{
		Text:       strings.TrimSpace(b.String()),
		IsFinal:    true,
		Confidence: 1.0,
		Timestamp:  time.Now(),
	}, nil
}

// loopbackSynthesizer emits the reply text as audio frames.
type loopbackSynthesizer struct{}

func (loopbackSynthesizer) Synthesize(ctx context.Context, _ pool.Client, text string, emit func(types.AudioChunk) error) error {
	const frameSize = 640
	data := []byte(text)
	for off := 0; off < len(data); off += frameSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + frameSize
		if end > len(data) {
			end = len(data)
		}
		chunk := types.AudioChunk{
			Data:       data[off:end],
			SampleRate: 16000,
			Channels:   1,
			Timestamp:  time.Now(),
			IsFinal:    end == len(data),
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

// echoReasoner parrots the caller. It keeps the serve command functional
// without an LLM integration.
type echoReasoner struct{}

func (echoReasoner) Respond(_ context.Context, in orchestrator.ReasonInput, _ orchestrator.ToolExecutor) (*orchestrator.ReasonOutput, error) {
	return &orchestrator.ReasonOutput{Text: "You said: " + in.Utterance}, nil
}
