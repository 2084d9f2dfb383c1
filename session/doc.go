// Package session holds the mutable per-call record and the store contract
// used to mirror it between turns.
//
// A State is owned exclusively by one orchestrator instance for the lifetime
// of the call (single-writer discipline); the store only sees it at turn
// boundaries. Stores are last-writer-wins, keyed by session id.
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - Redis: for distributed deployments with cross-instance resumption
package session
