package credential

import (
	"context"
)

// Storage is a flat key/value store for one visitor's student credential.
// Implementations back the two scopes: persistent (per device) and session.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes every given key. Missing keys are not an error.
	// POST: Get reports absent for each key
	Remove(ctx context.Context, keys ...string) error
}
