package adapter

import "context"

// RestoreResult is what the generative provider returns for one restoration
// call (spec.md §6).
type RestoreResult struct {
	Image         []byte
	RequestID     string
	BilledUnits   int64
	EstimatedCost float64
}

// RestorationProvider is the out-of-scope generative-image collaborator.
// Implementations are responsible for their own local retry policy
// (spec.md §4.7: 3 attempts, jittered backoff) — the queue engine's retry
// budget is a separate, outer concern.
type RestorationProvider interface {
	Name() string
	Restore(ctx context.Context, prompt string, image []byte) (RestoreResult, error)
}
