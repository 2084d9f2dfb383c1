package pool

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a pooled handle speaks to.
type Kind string

const (
	KindRecognizer  Kind = "recognizer"
	KindSynthesizer Kind = "synthesizer"
)

// Tier records how a handle was obtained.
type Tier string

const (
	// TierDedicated is a handle bound to the acquiring session by a previous
	// release; it avoids cross-session handshake cost entirely.
	TierDedicated Tier = "dedicated"

	// TierWarm is a pre-built idle handle; it avoids construction latency.
	TierWarm Tier = "warm"

	// TierCold is a handle constructed synchronously for this acquire.
	TierCold Tier = "cold"
)

// Client is a vendor speech client handle. Implementations live outside the
// engine; the pool only needs health and teardown.
type Client interface {
	// Healthy reports whether the handle is still usable. Checked lazily at
	// acquisition time.
	Healthy() bool

	// Close tears the handle down.
	Close() error
}

// Factory constructs a new client handle. It must respect ctx cancellation;
// the pool bounds cold construction with the acquire timeout.
type Factory func(ctx context.Context, kind Kind) (Client, error)

// Resource is one pooled handle, owned by at most one caller at a time.
type Resource struct {
	ID           string    `json:"resource_id"`
	Kind         Kind      `json:"kind"`
	Tier         Tier      `json:"tier"`
	OwnerSession string    `json:"owner_session,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`

	client Client
}

// Client returns the underlying vendor handle.
func (r *Resource) Client() Client {
	return r.client
}

func (r *Resource) healthy() bool {
	return r.client != nil && r.client.Healthy()
}

func newResource(client Client, kind Kind, tier Tier, owner string) *Resource {
	now := time.Now()
	return &Resource{
		ID:           uuid.New().String(),
		Kind:         kind,
		Tier:         tier,
		OwnerSession: owner,
		CreatedAt:    now,
		LastUsedAt:   now,
		client:       client,
	}
}
