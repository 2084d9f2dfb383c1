package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAudioChunk_Duration(t *testing.T) {
	// 16kHz mono, 16-bit: 32000 bytes per second.
	chunk := AudioChunk{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}
	assert.Equal(t, 100*time.Millisecond, chunk.Duration())

	// Stereo halves the per-channel sample count.
	chunk.Channels = 2
	assert.Equal(t, 50*time.Millisecond, chunk.Duration())

	// Unknown sample rate yields zero rather than dividing by zero.
	assert.Equal(t, time.Duration(0), AudioChunk{Data: make([]byte, 100)}.Duration())
}
