package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripStores runs the shared store contract tests against every backend.
func roundTripStores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStoreWithClient(client, "", 0),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range roundTripStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			state := NewState("call-1", "triage")
			state.SetActiveAgent("billing")
			state.SetVariable("correlation_id", "corr-1")
			state.TurnSequence = 7

			require.NoError(t, store.Save(ctx, "call-1", state))

			loaded, err := store.Load(ctx, "call-1")
			require.NoError(t, err)
			assert.Equal(t, state.ActiveAgent, loaded.ActiveAgent)
			assert.Equal(t, state.VisitedAgents, loaded.VisitedAgents)
			assert.Equal(t, state.SharedVariables, loaded.SharedVariables)
			assert.Equal(t, state.TurnSequence, loaded.TurnSequence)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range roundTripStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_LastWriterWins(t *testing.T) {
	for name, store := range roundTripStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := NewState("call-1", "triage")
			first.TurnSequence = 1
			require.NoError(t, store.Save(ctx, "call-1", first))

			second := NewState("call-1", "billing")
			second.TurnSequence = 2
			require.NoError(t, store.Save(ctx, "call-1", second))

			loaded, err := store.Load(ctx, "call-1")
			require.NoError(t, err)
			assert.Equal(t, "billing", loaded.ActiveAgent)
			assert.Equal(t, uint64(2), loaded.TurnSequence)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range roundTripStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "call-1", NewState("call-1", "triage")))
			require.NoError(t, store.Delete(ctx, "call-1"))

			_, err := store.Load(ctx, "call-1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStore_SaveIsolatesState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	state := NewState("call-1", "triage")
	require.NoError(t, store.Save(ctx, "call-1", state))

	// Mutations after save are not visible until the next save.
	state.SetActiveAgent("billing")

	loaded, err := store.Load(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "triage", loaded.ActiveAgent)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Save(ctx, "x", NewState("x", "a")), ErrStoreClosed)
	_, err := store.Load(ctx, "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStoreWithClient(client, "", time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "call-1", NewState("call-1", "triage")))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "call-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewStore_Factory(t *testing.T) {
	store, err := NewStore(StoreConfig{})
	require.NoError(t, err)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)

	_, err = NewStore(StoreConfig{Type: "cassandra"})
	assert.Error(t, err)
}
