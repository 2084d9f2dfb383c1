package handoff

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callmux/callmux/agent"
	"github.com/callmux/callmux/types"
)

// Control fields inside a handoff tool result. They are internal signaling
// between the tool and the orchestrator and must never leak into the context
// a target agent sees.
const (
	keySuccess          = "success"
	keyTargetAgent      = "target_agent"
	keyShouldInterrupt  = "should_interrupt_playback"
	keyHandoffSummary   = "handoff_summary"
	keySessionOverrides = "session_overrides"
	keyReason           = "reason"
)

var controlKeys = []string{
	keySuccess,
	keyTargetAgent,
	keyShouldInterrupt,
	keyHandoffSummary,
	keySessionOverrides,
}

// Shared-variable keys merged forward into every handoff context so that
// identity and personalization survive a transfer regardless of what the
// tool returned.
var carryForwardKeys = []string{
	"caller_profile",
	"correlation_id",
	"tenant_id",
	"institution_id",
}

// Router is the per-process routing table mapping trigger identifiers to
// target agent identities. It is built once from a registry snapshot and is
// read-only afterwards; a definition reload builds a new router.
type Router struct {
	routes map[string]string
	logger *zap.Logger
}

// BuildRoutingTable builds a router from the agents in the snapshot. Each
// agent contributes at most one trigger; a duplicate trigger across agents is
// a configuration error surfaced here rather than at call time.
func BuildRoutingTable(snap *agent.Snapshot, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	routes := make(map[string]string)
	for _, def := range snap.List() {
		if def.Trigger == "" {
			continue
		}
		if owner, exists := routes[def.Trigger]; exists {
			return nil, types.NewError(types.ErrDuplicateTrigger,
				fmt.Sprintf("trigger %q declared by both %s and %s", def.Trigger, owner, def.Name))
		}
		routes[def.Trigger] = def.Name
	}
	logger.Info("routing table built", zap.Int("triggers", len(routes)))
	return &Router{
		routes: routes,
		logger: logger.With(zap.String("component", "handoff_router")),
	}, nil
}

// Resolve looks up the target agent for a tool name. The second return value
// is false when the tool is not a handoff trigger.
func (r *Router) Resolve(toolName string) (string, bool) {
	target, ok := r.routes[toolName]
	return target, ok
}

// BuildContext constructs the context-transfer record for a resolved handoff.
//
// Construction order matters: the tool result is sanitized first, the reason
// is derived with fallbacks, the carry-forward allow-list of shared variables
// is merged, and any session_overrides from the tool result are applied last
// so the source agent can explicitly override merged values.
func (r *Router) BuildContext(
	sourceAgent, targetAgent string,
	toolResult map[string]any,
	toolArgs map[string]any,
	sharedVariables map[string]any,
	lastUtterance string,
) *Record {
	ctx := SanitizeContext(toolResult)

	for _, key := range carryForwardKeys {
		if v, ok := sharedVariables[key]; ok {
			ctx[key] = v
		}
	}

	if overrides, ok := toolResult[keySessionOverrides].(map[string]any); ok {
		for k, v := range overrides {
			ctx[k] = v
		}
	}

	rec := &Record{
		ID:                uuid.New().String(),
		SourceAgent:       sourceAgent,
		TargetAgent:       targetAgent,
		Reason:            deriveReason(toolResult, toolArgs),
		UserLastUtterance: lastUtterance,
		ContextData:       ctx,
		ShouldInterrupt:   boolField(toolResult, keyShouldInterrupt),
		CreatedAt:         time.Now(),
	}

	r.logger.Debug("handoff context built",
		zap.String("id", rec.ID),
		zap.String("source", sourceAgent),
		zap.String("target", targetAgent),
		zap.Bool("should_interrupt", rec.ShouldInterrupt),
	)
	return rec
}

// SanitizeContext copies the tool result with the control fields stripped.
// The input map is never mutated.
func SanitizeContext(toolResult map[string]any) map[string]any {
	out := make(map[string]any, len(toolResult))
	for k, v := range toolResult {
		out[k] = v
	}
	for _, key := range controlKeys {
		delete(out, key)
	}
	return out
}

// deriveReason picks the handoff reason: explicit reason in the tool result,
// then in the tool arguments, then a generic fallback.
func deriveReason(toolResult, toolArgs map[string]any) string {
	if s, ok := toolResult[keyReason].(string); ok && s != "" {
		return s
	}
	if s, ok := toolArgs[keyReason].(string); ok && s != "" {
		return s
	}
	return "handoff requested"
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
