package documents

import (
	"context"
	"fmt"

	"github.com/stockledger/backend/internal/domain/shared"
)

// idempotencyGuard wraps an IdempotencyStore for document postings and
// cancellations. A nil store disables the guard, which tests and single
// node deployments use.
type idempotencyGuard struct {
	store  shared.IdempotencyStore
	config shared.IdempotencyConfig
}

func newIdempotencyGuard(store shared.IdempotencyStore) idempotencyGuard {
	return idempotencyGuard{store: store, config: shared.DefaultIdempotencyConfig()}
}

func (g *idempotencyGuard) setConfig(cfg shared.IdempotencyConfig) {
	g.config = cfg
}

// check marks the operation key as processed. A repeated key fails with a
// conflict so callers learn their retry hit an already-applied operation
// instead of silently double-posting.
func (g idempotencyGuard) check(ctx context.Context, key string) error {
	if g.store == nil || !g.config.Enabled {
		return nil
	}
	first, err := g.store.MarkProcessed(ctx, key, g.config.TTL)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !first {
		return shared.NewConflictError(fmt.Sprintf("operation %s was already processed", key))
	}
	return nil
}

// release frees a key claimed by check after the guarded operation
// failed, so a corrected retry of the same document is not refused. If
// the release itself fails the key is left to expire with its TTL.
func (g idempotencyGuard) release(ctx context.Context, key string) {
	if g.store == nil || !g.config.Enabled {
		return
	}
	_ = g.store.Release(ctx, key)
}
