package handoff

import "time"

// Status represents the lifecycle state of a handoff attempt.
type Status string

const (
	StatusRequested    Status = "requested"
	StatusContextBuilt Status = "context_built"
	StatusApplied      Status = "applied"
	StatusGreeted      Status = "greeted"
	StatusFailed       Status = "failed"
)

// Record is the immutable context-transfer record for one handoff attempt.
// It is constructed once by the router and consumed exactly once when the
// orchestrator applies the transition; it is not retained afterwards.
type Record struct {
	ID                string         `json:"id"`
	SourceAgent       string         `json:"source_agent"`
	TargetAgent       string         `json:"target_agent"`
	Reason            string         `json:"reason"`
	UserLastUtterance string         `json:"user_last_utterance"`
	ContextData       map[string]any `json:"context_data,omitempty"`
	ShouldInterrupt   bool           `json:"should_interrupt"`
	CreatedAt         time.Time      `json:"created_at"`
}
