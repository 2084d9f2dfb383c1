// Package orchestrator implements the per-call session engine: the turn
// pipeline from recognition through reasoning to synthesis, barge-in
// interruption, tool dispatch with inline handoff detection, and turn
// persistence.
//
// Two concurrency strategies sit behind the same Orchestrator contract.
// Pipelined runs cooperating stages over bounded queues; Duplex runs a
// single event loop over a bidirectional vendor channel. The difference is
// how suspension and cancellation are implemented, not external behavior.
package orchestrator
