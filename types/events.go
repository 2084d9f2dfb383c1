package types

import "time"

// AudioChunk represents a chunk of inbound or outbound audio data.
type AudioChunk struct {
	Data       []byte    `json:"data"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Timestamp  time.Time `json:"timestamp"`
	IsFinal    bool      `json:"is_final"`
}

// Duration estimates the playback duration of the chunk assuming 16-bit PCM.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	channels := c.Channels
	if channels <= 0 {
		channels = 1
	}
	samples := len(c.Data) / (2 * channels)
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// TranscriptEvent represents a speech-to-text event. Non-final events carry
// partial hypotheses that may be revised; a final event closes the utterance.
type TranscriptEvent struct {
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Confidence float64   `json:"confidence"`
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	Timestamp  time.Time `json:"timestamp"`
}

// SpeechEvent represents a text-to-speech event: one chunk of synthesized
// audio together with the text it was rendered from.
type SpeechEvent struct {
	Audio      []byte    `json:"audio"`
	Text       string    `json:"text"`
	SampleRate int       `json:"sample_rate"`
	IsFinal    bool      `json:"is_final"`
	Timestamp  time.Time `json:"timestamp"`
}

// InputEvent is one inbound user event delivered by a transport adapter.
// Exactly one of Audio or Text is set: audio frames flow through recognition,
// text is treated as an already-recognized final utterance.
type InputEvent struct {
	SessionID string      `json:"session_id"`
	Audio     *AudioChunk `json:"audio,omitempty"`
	Text      string      `json:"text,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
