// Package pool supplies recognizer and synthesizer client handles with
// tiered latency guarantees under concurrent call load.
//
// Acquisition resolves in strict priority order: dedicated (a handle bound to
// the session by a previous release, zero wait), warm (a pre-built idle
// handle), then cold (synchronous construction via the factory). Cold is the
// fallback that preserves correctness at a latency cost; only a timeout or a
// failed construction surfaces POOL_EXHAUSTED, and the caller is expected to
// degrade rather than fail the call.
//
// Background warm-up runs as a task owned by the pool and stopped on Close;
// it never blocks a foreground acquire. Handle health is rechecked lazily at
// acquisition time: a broken handle is discarded and the next tier is tried.
package pool
