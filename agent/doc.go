// Package agent defines agent identities and the registry of agent
// definitions available to a callmux process.
//
// The registry hands out immutable snapshots: a reload builds a new snapshot
// and swaps it atomically, it never mutates one in place. Routing tables and
// in-flight calls therefore always observe a consistent set of definitions.
package agent
