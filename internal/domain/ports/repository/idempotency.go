package repository

import (
	"context"
	"time"

	"github.com/imagerestore/controlplane/internal/domain/model"
)

// IdempotencyRepository maps (owner, key) to the canonical first response
// for a bounded window (spec.md §4.3). Backed by the shared key-value store.
type IdempotencyRepository interface {
	Get(ctx context.Context, ownerID, key string) (*model.IdempotencyEntry, error)
	PutWithTTL(ctx context.Context, e *model.IdempotencyEntry, ttl time.Duration) error
}
