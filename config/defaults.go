package config

import (
	"time"

	"github.com/callmux/callmux/orchestrator"
	"github.com/callmux/callmux/pool"
	"github.com/callmux/callmux/session"
)

// DefaultConfig returns a runnable default configuration: in-memory session
// store, pipelined orchestration, small warm pools.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Log:          DefaultLogConfig(),
		Session:      session.StoreConfig{Type: session.StoreTypeMemory},
		Recognizers:  pool.DefaultConfig(pool.KindRecognizer),
		Synthesizers: pool.DefaultConfig(pool.KindSynthesizer),
		Orchestrator: orchestrator.DefaultConfig(),
	}
}

// DefaultServerConfig returns the default listening surface.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      ":8080",
		MetricsAddr:     ":9091",
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}
