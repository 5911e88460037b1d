package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed operation keys to prevent a document
// posting or cancellation from being applied twice.
type IdempotencyStore interface {
	// MarkProcessed marks an operation key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an operation key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release removes a processed key before its TTL expires, so an
	// operation that failed after claiming the key can be retried.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed keys. After this duration the
	// same key can be processed again.
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
