// Package cache provides optional response caching for buffered
// completions.
//
// Implementations must be safe for concurrent use. Users can satisfy
// the Cache interface with their own backend (Redis, Memcached, etc.);
// this package ships an in-memory implementation and a no-op.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Cache defines the caching interface.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns an error if the key is not found or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with TTL.
	// A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error

	// Close closes the cache and releases resources.
	Close() error
}

// Key generates a deterministic cache key for a completion request.
//
// The key is derived from the model name, the JSON-encoded conversation,
// and the sampling parameters, so identical requests produce identical keys.
//
// Returns a SHA256-based key prefixed with "lamp:v1:".
func Key(model string, messages []byte, temperature *float64, maxTokens *int) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write(messages)
	if temperature != nil {
		fmt.Fprintf(h, "temp:%.2f", *temperature)
	}
	if maxTokens != nil {
		fmt.Fprintf(h, "max:%d", *maxTokens)
	}
	return fmt.Sprintf("lamp:v1:%x", h.Sum(nil))
}
