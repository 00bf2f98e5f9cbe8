package repository

import (
	"context"
	"time"

	"github.com/imagerestore/controlplane/internal/domain/model"
)

// RateLimiter admits or denies one request against a fixed-window token
// bucket (spec.md §4.4). Implementations must apply the read/branch/write as
// a single atomic operation against the shared store.
type RateLimiter interface {
	Allow(ctx context.Context, scope model.RateLimitScope, principal string, limit int, window time.Duration) (model.RateLimitDecision, error)
}
