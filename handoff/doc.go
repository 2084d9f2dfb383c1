// Package handoff implements the agent handoff routing and context-transfer
// protocol: the static routing table mapping trigger identifiers to target
// agents, and the construction of the sanitized context record the target
// agent receives when conversation ownership is transferred mid-call.
//
// A handoff moves through the states requested → context_built → applied →
// greeted. A request that resolves to an unknown target fails without
// terminating the call.
package handoff
