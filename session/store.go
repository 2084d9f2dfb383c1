package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common store errors.
var (
	ErrNotFound    = errors.New("session not found")
	ErrStoreClosed = errors.New("store is closed")
)

// Store mirrors session state between turns. Implementations are
// last-writer-wins: a session is bound to exactly one orchestrator instance
// at a time, so conflicting writers indicate a routing bug, not a condition
// the store resolves.
type Store interface {
	// Load returns the state for the session, or ErrNotFound.
	Load(ctx context.Context, sessionID string) (*State, error)

	// Save persists the state under its session id.
	Save(ctx context.Context, sessionID string, state *State) error

	// Delete removes the session.
	Delete(ctx context.Context, sessionID string) error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// StoreType selects a storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreConfig configures session storage.
type StoreConfig struct {
	// Type selects the backend (default: memory).
	Type StoreType `yaml:"type" json:"type"`

	// TTL expires idle sessions in backends that support it; zero keeps
	// sessions until deleted.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// Redis holds backend-specific settings when Type is "redis".
	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// NewStore creates a session store for the configured backend.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeRedis:
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unknown session store type: %s", cfg.Type)
	}
}
