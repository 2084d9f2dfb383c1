// Package server manages HTTP listeners with background serving and
// graceful, signal-aware shutdown.
package server
