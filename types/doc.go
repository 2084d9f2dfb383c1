// Package types defines the shared data types of the callmux engine:
// the structured error taxonomy, audio/transcript/speech events exchanged
// between the transport, recognition and synthesis layers, and the tagged
// tool-result union returned by tool dispatch.
//
// The package has no dependencies on the rest of the engine and may be
// imported from anywhere.
package types
