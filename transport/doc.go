// Package transport defines the adapter contract between the orchestration
// engine and a caller's media endpoint, plus a WebSocket implementation.
//
// The engine only depends on the Adapter interface; telephony or SIP
// terminations plug in behind the same contract.
package transport
